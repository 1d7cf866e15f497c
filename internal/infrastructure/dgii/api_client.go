package dgii

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/pkg/config"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
	"github.com/jhoicas/Facturacion-ecf/pkg/logger"
)

// URLs base de los servicios e-CF por ambiente (ecf.dgii.gov.do).
const (
	baseURLTesteCF = "https://ecf.dgii.gov.do/testecf"
	baseURLCerteCF = "https://ecf.dgii.gov.do/certecf"
	baseURLECF     = "https://ecf.dgii.gov.do/ecf"

	pathSemilla        = "/autenticacion/api/autenticacion/semilla"
	pathValidarSemilla = "/autenticacion/api/autenticacion/validarsemilla"
	pathRecepcion      = "/recepcion/api/facturaselectronicas"
	pathConsultaEstado = "/consultaresultado/api/consultas/estado"

	// TTL del token cuando la DGII no devuelve vencimiento parseable.
	defaultTokenTTL = 50 * time.Minute
)

var _ ECFSubmitter = (*APIClient)(nil)

// APIClient implementa ECFSubmitter contra los servicios REST e-CF de la DGII.
// La autenticación es por semilla: se descarga un XML semilla, se firma con el
// certificado del emisor y se canjea por un token de sesión que se cachea en
// Redis para compartirlo entre API y worker.
type APIClient struct {
	httpClient *http.Client
	cfg        config.DGIIConfig
	cert       tls.Certificate
	firmador   dgii.Signer
	tokens     TokenCache
	tokenOwner string // RNC del titular del certificado; clave del caché de tokens
	log        *logger.Logger
}

// NewAPIClient construye el cliente. cert es el certificado de firma del
// emisor (también firma la semilla); firmador el servicio de firma XMLDSig.
func NewAPIClient(cfg config.DGIIConfig, cert tls.Certificate, firmador dgii.Signer, tokens TokenCache, log *logger.Logger) *APIClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		cert:       cert,
		firmador:   firmador,
		tokens:     tokens,
		tokenOwner: certOwnerRNC(cert),
		log:        log.WithComponent("dgii_client"),
	}
}

// certOwnerRNC extrae el RNC del sujeto del certificado (la DGII lo emite en
// SerialNumber del subject). Si no se puede determinar se usa una clave fija:
// el despliegue firma con un solo certificado.
func certOwnerRNC(cert tls.Certificate) string {
	if len(cert.Certificate) == 0 {
		return "emisor"
	}
	leaf := cert.Leaf
	if leaf == nil {
		parsed, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return "emisor"
		}
		leaf = parsed
	}
	if sn := strings.TrimSpace(leaf.Subject.SerialNumber); sn != "" {
		return sn
	}
	return "emisor"
}

// baseURL resuelve la URL base del ambiente. DGII_BASE_URL la sobreescribe
// (emuladores locales, tests).
func (c *APIClient) baseURL(env string) (string, error) {
	if c.cfg.BaseURL != "" {
		return strings.TrimRight(c.cfg.BaseURL, "/"), nil
	}
	switch env {
	case dgii.AmbienteTesteCF:
		return baseURLTesteCF, nil
	case dgii.AmbienteCerteCF:
		return baseURLCerteCF, nil
	case dgii.AmbienteECF:
		return baseURLECF, nil
	default:
		return "", fmt.Errorf("ambiente DGII desconocido %q (usar TesteCF, CerteCF o eCF)", env)
	}
}

// ── Autenticación por semilla ─────────────────────────────────────────────────

type tokenResponse struct {
	Token    string `json:"token"`
	Expira   string `json:"expira"`
	Expedido string `json:"expedido"`
}

// getToken devuelve un token de sesión vigente para el ambiente, usando el
// caché compartido y ejecutando el flujo de semilla solo en un miss.
func (c *APIClient) getToken(ctx context.Context, env string, forceRefresh bool) (string, error) {
	if !forceRefresh {
		if token, err := c.tokens.Get(ctx, env, c.tokenOwner); err == nil && token != "" {
			return token, nil
		}
	}

	base, err := c.baseURL(env)
	if err != nil {
		return "", err
	}

	// 1) Descargar la semilla (XML).
	seed, err := c.fetchSemilla(ctx, base)
	if err != nil {
		return "", err
	}

	// 2) Firmarla con el certificado del emisor.
	signedSeed, _, err := c.firmador.Sign(seed, c.cert)
	if err != nil {
		return "", fmt.Errorf("firmar semilla: %w", err)
	}

	// 3) Canjearla por el token de sesión.
	tok, err := c.validarSemilla(ctx, base, signedSeed)
	if err != nil {
		return "", err
	}

	ttl := c.tokenTTL(tok.Expira)
	if err := c.tokens.Set(ctx, env, c.tokenOwner, tok.Token, ttl); err != nil {
		// El caché es una optimización: sin él cada proceso repite la semilla.
		c.log.Warn().Err(err).Msg("no se pudo cachear el token DGII")
	}
	c.log.Debug().Str("env", env).Dur("ttl", ttl).Msg("token DGII renovado")
	return tok.Token, nil
}

func (c *APIClient) fetchSemilla(ctx context.Context, base string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+pathSemilla, nil)
	if err != nil {
		return nil, fmt.Errorf("crear request semilla: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: semilla: %v", domain.ErrTransporteDGII, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: leer semilla: %v", domain.ErrTransporteDGII, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: semilla HTTP %d: %s", domain.ErrTransporteDGII, resp.StatusCode, truncate(body))
	}
	return body, nil
}

func (c *APIClient) validarSemilla(ctx context.Context, base string, signedSeed []byte) (*tokenResponse, error) {
	body, contentType, err := multipartXML("semilla.xml", signedSeed)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+pathValidarSemilla, body)
	if err != nil {
		return nil, fmt.Errorf("crear request validarsemilla: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: validarsemilla: %v", domain.ErrTransporteDGII, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: leer validarsemilla: %v", domain.ErrTransporteDGII, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: validarsemilla HTTP %d: %s", domain.ErrTransporteDGII, resp.StatusCode, truncate(raw))
	}
	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil || tok.Token == "" {
		return nil, fmt.Errorf("%w: respuesta de token inesperada: %s", domain.ErrTransporteDGII, truncate(raw))
	}
	return &tok, nil
}

// tokenTTL calcula cuánto cachear el token: vencimiento informado menos el
// margen de seguridad configurado.
func (c *APIClient) tokenTTL(expira string) time.Duration {
	slack := time.Duration(c.cfg.TokenSlackSeconds) * time.Second
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "1/2/2006 3:04:05 PM"} {
		if t, err := time.Parse(layout, expira); err == nil {
			if ttl := time.Until(t) - slack; ttl > 0 {
				return ttl
			}
			return time.Minute
		}
	}
	return defaultTokenTTL - slack
}

// ── Recepción ─────────────────────────────────────────────────────────────────

type receptionResponse struct {
	TrackID string `json:"trackId"`
	Error   string `json:"error"`
	Mensaje string `json:"mensaje"`
}

// Submit entrega el e-CF firmado al servicio de recepción. Un fallo de red o
// 5xx se reporta como ErrTransporteDGII (ruta a contingencia); un 4xx con
// detalle de la DGII como ErrRechazoDGII (terminal).
func (c *APIClient) Submit(ctx context.Context, signedXML []byte, filename, env string) (*ReceptionResult, error) {
	base, err := c.baseURL(env)
	if err != nil {
		return nil, err
	}

	doSubmit := func(token string) (*http.Response, error) {
		body, contentType, err := multipartXML(filename, signedXML)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+pathRecepcion, body)
		if err != nil {
			return nil, fmt.Errorf("crear request recepción: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", token)
		return c.httpClient.Do(req)
	}

	token, err := c.getToken(ctx, env, false)
	if err != nil {
		return nil, err
	}
	resp, err := doSubmit(token)
	if err != nil {
		return nil, fmt.Errorf("%w: recepción: %v", domain.ErrTransporteDGII, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Token vencido antes del TTL cacheado: renovar una vez y reintentar.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if token, err = c.getToken(ctx, env, true); err != nil {
			return nil, err
		}
		if resp, err = doSubmit(token); err != nil {
			return nil, fmt.Errorf("%w: recepción: %v", domain.ErrTransporteDGII, err)
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: leer recepción: %v", domain.ErrTransporteDGII, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var rr receptionResponse
		if err := json.Unmarshal(raw, &rr); err != nil || rr.TrackID == "" {
			return nil, fmt.Errorf("%w: respuesta de recepción inesperada: %s", domain.ErrTransporteDGII, truncate(raw))
		}
		return &ReceptionResult{TrackID: rr.TrackID, Message: rr.Mensaje}, nil
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: recepción HTTP %d: %s", domain.ErrTransporteDGII, resp.StatusCode, truncate(raw))
	default:
		// 4xx: la DGII no admitió el documento (estructura, firma, duplicado).
		return nil, fmt.Errorf("%w: recepción HTTP %d: %s", domain.ErrRechazoDGII, resp.StatusCode, receptionErrorDetail(raw))
	}
}

func receptionErrorDetail(raw []byte) string {
	var rr receptionResponse
	if err := json.Unmarshal(raw, &rr); err == nil {
		if rr.Mensaje != "" {
			return rr.Mensaje
		}
		if rr.Error != "" {
			return rr.Error
		}
	}
	return truncate(raw)
}

// ── Consulta de resultado ─────────────────────────────────────────────────────

type statusResponse struct {
	TrackID  string          `json:"trackId"`
	Codigo   string          `json:"codigo"`
	Estado   string          `json:"estado"`
	Mensajes []statusMessage `json:"mensajes"`
}

type statusMessage struct {
	Valor  string `json:"valor"`
	Codigo int    `json:"codigo"`
}

// QueryStatus consulta el resultado de un envío. Devuelve el código numérico
// del catálogo DGII; el mapeo a estados del ciclo de vida lo hace el
// orquestador.
func (c *APIClient) QueryStatus(ctx context.Context, trackID, env string) (*StatusResult, error) {
	base, err := c.baseURL(env)
	if err != nil {
		return nil, err
	}
	token, err := c.getToken(ctx, env, false)
	if err != nil {
		return nil, err
	}

	u := base + pathConsultaEstado + "?trackid=" + url.QueryEscape(trackID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("crear request consulta: %w", err)
	}
	req.Header.Set("Authorization", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: consulta: %v", domain.ErrTransporteDGII, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: leer consulta: %v", domain.ErrTransporteDGII, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: consulta HTTP %d: %s", domain.ErrTransporteDGII, resp.StatusCode, truncate(raw))
	}

	var sr statusResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, fmt.Errorf("%w: respuesta de consulta inesperada: %s", domain.ErrTransporteDGII, truncate(raw))
	}
	codigo, err := strconv.Atoi(strings.TrimSpace(sr.Codigo))
	if err != nil {
		codigo = dgii.EstadoDGIINoEncontrado
	}
	msgs := make([]string, 0, len(sr.Mensajes))
	for _, m := range sr.Mensajes {
		if m.Valor != "" {
			msgs = append(msgs, m.Valor)
		}
	}
	return &StatusResult{
		TrackID:  sr.TrackID,
		Codigo:   codigo,
		Estado:   sr.Estado,
		Mensajes: strings.Join(msgs, "; "),
	}, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// multipartXML arma el cuerpo multipart/form-data con el XML en el campo
// "xml", como esperan los servicios de la DGII.
func multipartXML(filename string, content []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("xml", filename)
	if err != nil {
		return nil, "", fmt.Errorf("multipart: %w", err)
	}
	if _, err := fw.Write(content); err != nil {
		return nil, "", fmt.Errorf("multipart write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("multipart close: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func truncate(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}

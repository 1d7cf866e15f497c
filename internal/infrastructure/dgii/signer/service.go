// Servicio de firma digital XMLDSig para e-CF DGII. La firma es envuelta:
// <Signature> se agrega como último hijo del elemento raíz (ECF o la semilla
// de autenticación).

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
	"github.com/ucarion/c14n"
)

// FirmaService implementa la firma XMLDSig envuelta y deriva el código de
// seguridad del comprobante.
type FirmaService struct{}

// NewFirmaService crea el servicio.
func NewFirmaService() *FirmaService {
	return &FirmaService{}
}

// Sign implementa pkg/dgii.Signer. Firma el XML, agrega <Signature> como
// último hijo de la raíz y devuelve el documento firmado junto al código de
// seguridad (primeros 6 caracteres del hash SHA-256 de la firma).
func (s *FirmaService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, string, error) {
	if len(xmlBytes) == 0 {
		return nil, "", fmt.Errorf("dgii: XML vacío")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, "", fmt.Errorf("dgii: el certificado debe incluir llave privada RSA")
	}
	if len(cert.Certificate) == 0 {
		return nil, "", fmt.Errorf("dgii: certificado sin cadena X509")
	}
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, "", fmt.Errorf("dgii: parsear certificado: %w", err)
	}

	// 1) Digest del documento completo (C14N). Reference URI="" = raíz.
	canonicalDoc, err := canonicalizeXML(xmlBytes)
	if err != nil {
		canonicalDoc = xmlBytes
	}
	docDigest := sha256.Sum256(canonicalDoc)
	docDigestB64 := base64.StdEncoding.EncodeToString(docDigest[:])

	// 2) SignedInfo canónico, firmado con RSA PKCS#1 v1.5 + SHA-256.
	signedInfoXML := s.buildSignedInfo(docDigestB64)
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		canonicalSignedInfo = []byte(signedInfoXML)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, "", fmt.Errorf("dgii: firmar SignedInfo: %w", err)
	}
	signatureValueB64 := base64.StdEncoding.EncodeToString(signatureValue)

	// 3) KeyInfo con el certificado del emisor.
	certB64 := base64.StdEncoding.EncodeToString(x509Cert.Raw)
	signatureXML := s.buildSignature(signedInfoXML, signatureValueB64, certB64)

	// 4) Inyectar como último hijo de la raíz.
	signed, err := s.injectSignature(xmlBytes, signatureXML)
	if err != nil {
		return nil, "", err
	}
	return signed, SecurityCode(signatureValue), nil
}

// SecurityCode deriva el código de seguridad del QR: primeros 6 caracteres
// del SHA-256 (Base64) del valor de la firma.
func SecurityCode(signatureValue []byte) string {
	h := sha256.Sum256(signatureValue)
	code := base64.StdEncoding.EncodeToString(h[:])
	if len(code) > SecurityCodeLength {
		code = code[:SecurityCodeLength]
	}
	return code
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func (s *FirmaService) buildSignedInfo(docDigestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<Reference URI="">`)
	sb.WriteString(`<Transforms><Transform Algorithm="` + TransformEnveloped + `"/></Transforms>`)
	sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<DigestValue>` + docDigestB64 + `</DigestValue>`)
	sb.WriteString(`</Reference>`)
	sb.WriteString(`</SignedInfo>`)
	return sb.String()
}

func (s *FirmaService) buildSignature(signedInfoXML, signatureValueB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<Signature xmlns="` + NamespaceDS + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<SignatureValue>` + signatureValueB64 + `</SignatureValue>`)
	sb.WriteString(`<KeyInfo><X509Data><X509Certificate>` + certB64 + `</X509Certificate></X509Data></KeyInfo>`)
	sb.WriteString(`</Signature>`)
	return sb.String()
}

func (s *FirmaService) injectSignature(xmlBytes []byte, signatureXML string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("dgii: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("dgii: documento sin raíz")
	}
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("dgii: parsear Signature: %w", err)
	}
	if sigRoot := sigDoc.Root(); sigRoot != nil {
		root.AddChild(sigRoot)
	}
	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("dgii: serializar XML firmado: %w", err)
	}
	return out.Bytes(), nil
}

var _ dgii.Signer = (*FirmaService)(nil)

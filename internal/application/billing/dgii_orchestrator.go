package billing

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
	infradgii "github.com/jhoicas/Facturacion-ecf/internal/infrastructure/dgii"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
	"github.com/jhoicas/Facturacion-ecf/pkg/logger"
)

// ECFOrchestrator orquesta el ciclo de envío de un comprobante a la DGII:
//
//	XML e-CF 1.0 → Firma XMLDSig → Recepción (multipart) → TrackId → Consulta
//
// Corre en el worker: el envío llega por la tarea ecf:submit encolada al
// emitir, y la consulta de estado por el barrido cron o bajo demanda desde el
// API. Todas las transiciones usan la guarda optimista de UpdateStatus, así
// dos workers procesando el mismo comprobante nunca producen dos desenlaces.
type ECFOrchestrator struct {
	txRunner       BillingTxRunner
	invoiceRepo    repository.InvoiceRepository
	companyRepo    repository.CompanyRepository
	rangeRepo      repository.SequenceRangeRepository
	xmlBuilder     *infradgii.XMLBuilderService
	firmador       dgii.Signer
	submitter      infradgii.ECFSubmitter
	cert           tls.Certificate
	ambienteGlobal string
	log            *logger.Logger
}

// NewECFOrchestrator construye el orquestador. ambienteGlobal es el ambiente
// DGII por defecto (TesteCF, CerteCF o eCF); una empresa con Environment
// propio lo sobreescribe.
func NewECFOrchestrator(
	txRunner BillingTxRunner,
	invoiceRepo repository.InvoiceRepository,
	companyRepo repository.CompanyRepository,
	rangeRepo repository.SequenceRangeRepository,
	xmlBuilder *infradgii.XMLBuilderService,
	firmador dgii.Signer,
	submitter infradgii.ECFSubmitter,
	cert tls.Certificate,
	ambienteGlobal string,
	log *logger.Logger,
) *ECFOrchestrator {
	return &ECFOrchestrator{
		txRunner:       txRunner,
		invoiceRepo:    invoiceRepo,
		companyRepo:    companyRepo,
		rangeRepo:      rangeRepo,
		xmlBuilder:     xmlBuilder,
		firmador:       firmador,
		submitter:      submitter,
		cert:           cert,
		ambienteGlobal: ambienteGlobal,
		log:            log.WithComponent("ecf_orchestrator"),
	}
}

// Submit genera, firma y envía el comprobante a la recepción DGII.
//
//   - Recepción OK            → ENVIADO con TrackId; contingencia RESUELTA.
//   - DGII inalcanzable (5xx) → CONTINGENCIA; el plazo legal corre desde la
//     primera entrada y los reintentos no lo reinician.
//   - Rechazo (4xx)           → RECHAZADO, terminal.
//   - Fallo de generación     → ERROR, requiere intervención.
//
// Es idempotente: un comprobante ya terminal (o en ERROR) se salta sin tocar.
func (o *ECFOrchestrator) Submit(ctx context.Context, invoiceID string) error {
	inv, err := o.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		o.log.Warn().Str("invoice_id", invoiceID).Msg("comprobante no encontrado, tarea descartada")
		return nil
	}

	// Solo BORRADOR, CONTINGENCIA (reintento) o PROCESANDO huérfano de una
	// corrida interrumpida pueden reclamarse para envío.
	if !inv.Status.PuedeTransicionar(entity.EstadoProcesando) {
		o.log.Debug().Str("invoice_id", invoiceID).Str("estado", string(inv.Status)).
			Msg("estado no enviable, tarea descartada")
		return nil
	}
	prev := inv.Status
	if err := inv.CambiarEstado(entity.EstadoProcesando); err != nil {
		return err
	}
	if err := o.invoiceRepo.UpdateStatus(ctx, inv, prev); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Otro worker lo reclamó primero.
			return nil
		}
		return err
	}

	company, err := o.companyRepo.GetByID(ctx, inv.CompanyID)
	if err != nil || company == nil {
		o.markError(ctx, inv, "fetch-company", "empresa no encontrada para el comprobante")
		return nil
	}
	lines, err := o.invoiceRepo.GetLines(ctx, invoiceID)
	if err != nil || len(lines) == 0 {
		o.markError(ctx, inv, "fetch-lines", "comprobante sin líneas de detalle")
		return nil
	}
	var rango *entity.SequenceRange
	if inv.RangeID != "" {
		rango, _ = o.rangeRepo.GetByID(ctx, inv.RangeID)
	}

	env := o.ambiente(company)

	// ── Generación y firma ──
	xmlBytes, err := o.xmlBuilder.Build(&infradgii.ECFBuildContext{
		Invoice: inv, Company: company, Lines: lines, Range: rango,
	})
	if err != nil {
		o.markError(ctx, inv, "xml-build", err.Error())
		return nil
	}

	fechaFirma := time.Now()
	signed, securityCode, err := o.firmador.Sign(xmlBytes, o.cert)
	if err != nil {
		o.markError(ctx, inv, "xml-sign", err.Error())
		return nil
	}
	inv.XMLSigned = string(signed)
	inv.SecurityCode = securityCode
	inv.QRData = infradgii.BuildQRURL(env, company, inv, fechaFirma, securityCode)

	// ── Recepción DGII ──
	result, err := o.submitter.Submit(ctx, signed, infradgii.ECFFilename(company, inv), env)
	switch {
	case err == nil:
		return o.marcarEnviado(ctx, inv, result)
	case errors.Is(err, domain.ErrTransporteDGII):
		return o.entrarContingencia(ctx, inv, err)
	case errors.Is(err, domain.ErrRechazoDGII):
		return o.marcarRechazado(ctx, inv, err)
	default:
		o.markError(ctx, inv, "recepcion", err.Error())
		return nil
	}
}

// Poll consulta el estado del TrackId en la DGII y aplica el resultado al
// ciclo de vida. Consultar un comprobante ya terminal es un no-op.
func (o *ECFOrchestrator) Poll(ctx context.Context, invoiceID string) error {
	inv, err := o.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		return nil
	}
	if inv.Status.EsTerminal() {
		return nil
	}
	if inv.Status != entity.EstadoEnviado || inv.TrackID == "" {
		o.log.Debug().Str("invoice_id", invoiceID).Str("estado", string(inv.Status)).
			Msg("sin TrackId pendiente de consulta")
		return nil
	}

	company, err := o.companyRepo.GetByID(ctx, inv.CompanyID)
	if err != nil {
		return err
	}

	st, err := o.submitter.QueryStatus(ctx, inv.TrackID, o.ambiente(company))
	if err != nil {
		// Transporte: el próximo barrido vuelve a intentar.
		return err
	}
	return o.aplicarEstadoDGII(ctx, inv, st)
}

// SubmitPending reenvía comprobantes que quedaron en BORRADOR (encolado
// perdido o worker caído antes de procesar).
func (o *ECFOrchestrator) SubmitPending(ctx context.Context, limit int) error {
	invs, err := o.invoiceRepo.ListByStatus(ctx, entity.EstadoBorrador, limit)
	if err != nil {
		return err
	}
	for _, inv := range invs {
		if err := o.Submit(ctx, inv.ID); err != nil {
			o.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("reenvío de borrador falló")
		}
	}
	return nil
}

// PollPending consulta el estado de todos los comprobantes ENVIADO.
func (o *ECFOrchestrator) PollPending(ctx context.Context, limit int) error {
	invs, err := o.invoiceRepo.ListByStatus(ctx, entity.EstadoEnviado, limit)
	if err != nil {
		return err
	}
	for _, inv := range invs {
		if err := o.Poll(ctx, inv.ID); err != nil {
			o.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("consulta de estado falló")
		}
	}
	return nil
}

// ── desenlaces del envío ──────────────────────────────────────────────────────

func (o *ECFOrchestrator) marcarEnviado(ctx context.Context, inv *entity.Invoice, result *infradgii.ReceptionResult) error {
	now := time.Now()
	prev := inv.Status
	if err := inv.CambiarEstado(entity.EstadoEnviado); err != nil {
		return err
	}
	inv.TrackID = result.TrackID
	if result.Message != "" {
		inv.DGIIMessage = result.Message
	}
	inv.SubmittedAt = &now
	// La contingencia quedó atrás; el evento resuelto conserva la auditoría.
	inv.ContingencyAt = nil

	err := o.txRunner.RunBilling(ctx, func(
		_ repository.SequenceRangeRepository,
		invoiceRepo repository.InvoiceRepository,
		contingencyRepo repository.ContingencyRepository,
	) error {
		if err := invoiceRepo.UpdateStatus(ctx, inv, prev); err != nil {
			return err
		}
		return contingencyRepo.Resolve(ctx, inv.ID, entity.ContingenciaResuelta, now)
	})
	if err != nil {
		return err
	}
	o.log.Info().Str("invoice_id", inv.ID).Str("encf", inv.ENCF).
		Str("track_id", inv.TrackID).Msg("comprobante recibido por la DGII")
	return nil
}

func (o *ECFOrchestrator) entrarContingencia(ctx context.Context, inv *entity.Invoice, causa error) error {
	now := time.Now()
	prev := inv.Status
	if err := inv.CambiarEstado(entity.EstadoContingencia); err != nil {
		return err
	}
	// El plazo legal corre desde la PRIMERA entrada; un reintento fallido no
	// lo reinicia.
	if inv.ContingencyAt == nil {
		inv.ContingencyAt = &now
	}
	inv.DGIIMessage = causa.Error()

	err := o.txRunner.RunBilling(ctx, func(
		_ repository.SequenceRangeRepository,
		invoiceRepo repository.InvoiceRepository,
		contingencyRepo repository.ContingencyRepository,
	) error {
		if err := invoiceRepo.UpdateStatus(ctx, inv, prev); err != nil {
			return err
		}
		// Un solo evento abierto por comprobante: los reintentos fallidos no
		// abren eventos nuevos.
		if _, err := contingencyRepo.GetOpenByInvoice(ctx, inv.ID); err == nil {
			return nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return contingencyRepo.Create(ctx, &entity.ContingencyEvent{
			ID:        uuid.New().String(),
			InvoiceID: inv.ID,
			CompanyID: inv.CompanyID,
			Reason:    causa.Error(),
			StartedAt: *inv.ContingencyAt,
		})
	})
	if err != nil {
		return err
	}
	o.log.Warn().Str("invoice_id", inv.ID).Str("encf", inv.ENCF).
		Time("contingencia_desde", *inv.ContingencyAt).
		Msg("DGII inalcanzable, comprobante en contingencia")
	// La contingencia quedó persistida: la tarea terminó. El monitor de
	// contingencia programa los reintentos dentro del plazo legal.
	return nil
}

func (o *ECFOrchestrator) marcarRechazado(ctx context.Context, inv *entity.Invoice, causa error) error {
	now := time.Now()
	prev := inv.Status
	if err := inv.CambiarEstado(entity.EstadoRechazado); err != nil {
		return err
	}
	inv.DGIIMessage = causa.Error()

	err := o.txRunner.RunBilling(ctx, func(
		_ repository.SequenceRangeRepository,
		invoiceRepo repository.InvoiceRepository,
		contingencyRepo repository.ContingencyRepository,
	) error {
		if err := invoiceRepo.UpdateStatus(ctx, inv, prev); err != nil {
			return err
		}
		// El rechazo implica que la DGII volvió a estar alcanzable.
		return contingencyRepo.Resolve(ctx, inv.ID, entity.ContingenciaResuelta, now)
	})
	if err != nil {
		return err
	}
	o.log.Warn().Str("invoice_id", inv.ID).Str("encf", inv.ENCF).
		Str("detalle", inv.DGIIMessage).Msg("comprobante rechazado por la DGII")
	return nil
}

// aplicarEstadoDGII mapea el código de la consulta de resultado al ciclo de
// vida: 0 = sin registro (se ignora), 1 = aceptado (o condicional si la
// tolerancia quedó excedida al emitir), 2 = rechazado, 3 = en proceso,
// 4 = aceptado condicional.
func (o *ECFOrchestrator) aplicarEstadoDGII(ctx context.Context, inv *entity.Invoice, st *infradgii.StatusResult) error {
	var destino entity.ECFStatus
	switch st.Codigo {
	case dgii.EstadoDGIINoEncontrado:
		o.log.Warn().Str("invoice_id", inv.ID).Str("track_id", inv.TrackID).
			Msg("TrackId sin registro en la DGII, se reintenta en el próximo barrido")
		return nil
	case dgii.EstadoDGIIAceptado:
		destino = entity.EstadoAceptado
		if inv.ToleranciaExcedida {
			destino = entity.EstadoCondicional
		}
	case dgii.EstadoDGIIRechazado:
		destino = entity.EstadoRechazado
	case dgii.EstadoDGIIEnProceso:
		o.log.Debug().Str("invoice_id", inv.ID).Msg("DGII aún procesando, en espera")
		return nil
	case dgii.EstadoDGIIAceptadoCondicional:
		destino = entity.EstadoCondicional
	default:
		o.log.Warn().Int("codigo", st.Codigo).Str("invoice_id", inv.ID).
			Msg("código de estado DGII desconocido, sin cambios")
		return nil
	}

	prev := inv.Status
	if err := inv.CambiarEstado(destino); err != nil {
		return err
	}
	if st.Mensajes != "" {
		inv.DGIIMessage = st.Mensajes
	}
	if err := o.invoiceRepo.UpdateStatus(ctx, inv, prev); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Otro poll resolvió primero; un solo desenlace terminal.
			return nil
		}
		return err
	}
	o.log.Info().Str("invoice_id", inv.ID).Str("encf", inv.ENCF).
		Str("estado", string(destino)).Msg("resultado DGII aplicado")
	return nil
}

// ── helpers privados ──────────────────────────────────────────────────────────

// markError mueve el comprobante a ERROR y deja el detalle en el mensaje.
func (o *ECFOrchestrator) markError(ctx context.Context, inv *entity.Invoice, paso, msg string) {
	prev := inv.Status
	if err := inv.CambiarEstado(entity.EstadoError); err != nil {
		o.log.Error().Str("invoice_id", inv.ID).Str("paso", paso).Err(err).
			Msg("no se pudo transicionar a ERROR")
		return
	}
	inv.DGIIMessage = msg
	if err := o.invoiceRepo.UpdateStatus(ctx, inv, prev); err != nil {
		o.log.Error().Str("invoice_id", inv.ID).Err(err).Msg("no se pudo persistir ERROR")
	}
	o.log.Error().Str("invoice_id", inv.ID).Str("paso", paso).Msg(msg)
}

func (o *ECFOrchestrator) ambiente(company *entity.Company) string {
	if company != nil && company.Environment != "" {
		return company.Environment
	}
	if o.ambienteGlobal != "" {
		return o.ambienteGlobal
	}
	return dgii.AmbienteTesteCF
}

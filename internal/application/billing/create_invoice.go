package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Facturacion-ecf/internal/application/dto"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	domdgii "github.com/jhoicas/Facturacion-ecf/internal/domain/dgii"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
	"github.com/jhoicas/Facturacion-ecf/pkg/logger"
)

// Formato de fechas en requests (YYYY-MM-DD).
const fechaEntrada = "2006-01-02"

// allocAttempts limita los reintentos cuando dos transacciones compiten por
// la misma secuencia (guarda optimista de UpdateCurrent).
const allocAttempts = 3

// CreateInvoiceUseCase emite comprobantes: valida contra las reglas DGII,
// asigna el e-NCF consumiendo secuencia y persiste cabecera y líneas en una
// sola transacción. El envío a la DGII queda encolado para el worker.
type CreateInvoiceUseCase struct {
	txRunner    BillingTxRunner
	companyRepo repository.CompanyRepository
	invoiceRepo repository.InvoiceRepository
	enqueuer    TaskEnqueuer
	log         *logger.Logger
}

// NewCreateInvoiceUseCase construye el caso de uso. enqueuer puede ser nil:
// en ese caso los comprobantes quedan en BORRADOR hasta que el barrido del
// worker los recoja.
func NewCreateInvoiceUseCase(
	txRunner BillingTxRunner,
	companyRepo repository.CompanyRepository,
	invoiceRepo repository.InvoiceRepository,
	enqueuer TaskEnqueuer,
	log *logger.Logger,
) *CreateInvoiceUseCase {
	return &CreateInvoiceUseCase{
		txRunner:    txRunner,
		companyRepo: companyRepo,
		invoiceRepo: invoiceRepo,
		enqueuer:    enqueuer,
		log:         log.WithComponent("create_invoice"),
	}
}

// CreateInvoice valida el comprobante, consume la próxima secuencia del rango
// autorizado y lo persiste en BORRADOR con su e-NCF definitivo. La secuencia
// queda consumida aunque el comprobante termine rechazado o anulado.
func (uc *CreateInvoiceUseCase) CreateInvoice(ctx context.Context, companyID string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: el comprobante debe tener al menos una línea", domain.ErrInvalidInput)
	}

	company, err := uc.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	if !company.Activa() {
		return nil, fmt.Errorf("%w: la empresa %s no está activa", domain.ErrForbidden, company.RNC)
	}

	now := time.Now()
	inv, lines, err := uc.buildComprobante(companyID, in, now)
	if err != nil {
		return nil, err
	}

	// Validación y normalización de dominio (fuera de la transacción). La
	// desviación de tolerancia no bloquea: viaja en el comprobante y degrada
	// una aceptación posterior a ACEPTADO_CONDICIONAL.
	res, err := domdgii.ValidateComprobante(inv, lines, company.RNC)
	if err != nil {
		return nil, err
	}
	inv.ToleranciaExcedida = res.ToleranciaExcedida

	// Asignación de secuencia con reintentos: si otra transacción avanzó el
	// contador entre el bloqueo y el update, se repite todo el perímetro.
	for intento := 1; ; intento++ {
		err = uc.txRunner.RunBilling(ctx, func(
			rangeRepo repository.SequenceRangeRepository,
			invoiceRepo repository.InvoiceRepository,
			_ repository.ContingencyRepository,
		) error {
			ranges, err := rangeRepo.LockForAllocation(ctx, companyID, inv.Tipo)
			if err != nil {
				return err
			}
			rg, err := pickRange(ranges, inv.Tipo, now)
			if err != nil {
				return err
			}

			seq, err := rg.Asignar(now)
			if err != nil {
				return err
			}
			if err := rangeRepo.UpdateCurrent(ctx, rg.ID, seq, rg.Current); err != nil {
				return err
			}

			encf, err := dgii.FormatENCF(inv.Tipo, seq)
			if err != nil {
				return err
			}
			inv.ENCF = encf
			inv.Secuencia = seq
			inv.RangeID = rg.ID

			return invoiceRepo.Create(ctx, inv, lines)
		})
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrConflictoAsignacion) && intento < allocAttempts {
			uc.log.Warn().Str("company_id", companyID).Int("intento", intento).
				Msg("conflicto de asignación de secuencia, reintentando")
			continue
		}
		return nil, err
	}

	uc.log.Info().Str("invoice_id", inv.ID).Str("encf", inv.ENCF).
		Str("company_id", companyID).Msg("comprobante emitido")

	// Encolar el envío después del commit; si falla, el barrido del worker
	// recoge el BORRADOR más tarde.
	if uc.enqueuer != nil {
		if err := uc.enqueuer.EnqueueSubmit(ctx, inv.ID); err != nil {
			uc.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo encolar el envío a la DGII")
		}
	}

	return toInvoiceResponse(inv, lines), nil
}

// GetInvoice obtiene un comprobante por ID con su detalle completo.
func (uc *CreateInvoiceUseCase) GetInvoice(ctx context.Context, companyID, id string) (*dto.InvoiceResponse, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	lines, err := uc.invoiceRepo.GetLines(ctx, id)
	if err != nil {
		return nil, err
	}
	return toInvoiceResponse(inv, lines), nil
}

// GetInvoiceStatus devuelve la vista ligera para el polling del cliente.
func (uc *CreateInvoiceUseCase) GetInvoiceStatus(ctx context.Context, companyID, id string) (*dto.InvoiceStatusDTO, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return &dto.InvoiceStatusDTO{
		ID:                inv.ID,
		ENCF:              inv.ENCF,
		Status:            string(inv.Status),
		ToleranceExceeded: inv.ToleranciaExcedida,
		TrackID:           inv.TrackID,
		DGIIMessage:       inv.DGIIMessage,
	}, nil
}

// ListInvoices lista comprobantes de la empresa con filtros de estado y tipo.
func (uc *CreateInvoiceUseCase) ListInvoices(ctx context.Context, companyID string, f repository.InvoiceFilter) ([]dto.InvoiceResponse, error) {
	invs, err := uc.invoiceRepo.List(ctx, companyID, f)
	if err != nil {
		return nil, err
	}
	out := make([]dto.InvoiceResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, *toInvoiceResponse(inv, nil))
	}
	return out, nil
}

// ── helpers privados ──────────────────────────────────────────────────────────

// buildComprobante traduce el request al agregado de dominio, sin e-NCF aún.
func (uc *CreateInvoiceUseCase) buildComprobante(companyID string, in dto.CreateInvoiceRequest, now time.Time) (*entity.Invoice, []*entity.InvoiceLine, error) {
	fechaEmision := now
	if in.IssueDate != "" {
		var err error
		fechaEmision, err = time.Parse(fechaEntrada, in.IssueDate)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: issue_date %q no es YYYY-MM-DD", domain.ErrInvalidInput, in.IssueDate)
		}
	}

	var modifiedDate *time.Time
	if in.ModifiedDate != "" {
		d, err := time.Parse(fechaEntrada, in.ModifiedDate)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: modified_date %q no es YYYY-MM-DD", domain.ErrInvalidInput, in.ModifiedDate)
		}
		modifiedDate = &d
	}

	inv := &entity.Invoice{
		ID:               uuid.New().String(),
		CompanyID:        companyID,
		Tipo:             dgii.TipoECF(in.ECFType),
		FechaEmision:     fechaEmision,
		BuyerName:        in.BuyerName,
		BuyerTaxID:       in.BuyerTaxID,
		Currency:         in.Currency,
		ExchangeRate:     in.ExchangeRate,
		NetTotal:         in.NetTotal,
		TaxTotal:         in.TaxTotal,
		GrandTotal:       in.GrandTotal,
		ModifiedENCF:     in.ModifiedENCF,
		ModifiedDate:     modifiedDate,
		ModificationCode: in.ModificationCode,
		Status:           entity.EstadoBorrador,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	lines := make([]*entity.InvoiceLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, &entity.InvoiceLine{
			ID:          uuid.New().String(),
			InvoiceID:   inv.ID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Discount:    l.Discount,
			TaxRate:     l.TaxRate,
			NetAmount:   l.NetAmount,
			TaxAmount:   l.TaxAmount,
		})
	}
	return inv, lines, nil
}

// pickRange elige, entre los rangos bloqueados, el usable con el menor próximo
// número; así los rangos se drenan en orden y las secuencias salen contiguas.
// Cuando ninguno sirve, distingue agotado de vencido para el mensaje.
func pickRange(ranges []*entity.SequenceRange, tipo dgii.TipoECF, now time.Time) (*entity.SequenceRange, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: tipo %d", domain.ErrSinRangoDisponible, tipo)
	}
	var elegido *entity.SequenceRange
	for _, rg := range ranges {
		if !rg.Usable(now) {
			continue
		}
		if elegido == nil || rg.Current < elegido.Current {
			elegido = rg
		}
	}
	if elegido != nil {
		return elegido, nil
	}
	for _, rg := range ranges {
		if !rg.Vencido(now) {
			return nil, fmt.Errorf("%w: tipo %d; solicite nueva autorización de secuencias", domain.ErrRangoAgotado, tipo)
		}
	}
	return nil, fmt.Errorf("%w: tipo %d", domain.ErrRangoVencido, tipo)
}

func toInvoiceResponse(inv *entity.Invoice, lines []*entity.InvoiceLine) *dto.InvoiceResponse {
	resp := &dto.InvoiceResponse{
		ID:                inv.ID,
		CompanyID:         inv.CompanyID,
		ECFType:           int(inv.Tipo),
		ENCF:              inv.ENCF,
		Status:            string(inv.Status),
		IssueDate:         inv.FechaEmision.Format(fechaEntrada),
		BuyerName:         inv.BuyerName,
		BuyerTaxID:        inv.BuyerTaxID,
		Currency:          inv.Currency,
		ExchangeRate:      inv.ExchangeRate,
		NetTotal:          inv.NetTotal,
		TaxTotal:          inv.TaxTotal,
		GrandTotal:        inv.GrandTotal,
		ModifiedENCF:      inv.ModifiedENCF,
		ModificationCode:  inv.ModificationCode,
		ToleranceExceeded: inv.ToleranciaExcedida,
		TrackID:           inv.TrackID,
		SecurityCode:      inv.SecurityCode,
		QRData:            inv.QRData,
		DGIIMessage:       inv.DGIIMessage,
		ContingencyAt:     inv.ContingencyAt,
		SubmittedAt:       inv.SubmittedAt,
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, dto.InvoiceLineResponse{
			LineNumber:  l.LineNumber,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Discount:    l.Discount,
			TaxRate:     l.TaxRate,
			NetAmount:   l.NetAmount,
			TaxAmount:   l.TaxAmount,
		})
	}
	return resp
}

package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Facturacion-ecf/internal/application/dto"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
	"github.com/jhoicas/Facturacion-ecf/pkg/logger"
)

// SequenceUseCase administra los rangos de secuencias autorizados por la
// DGII: registro (con control de solapamiento), listado y desactivación.
// Los rangos nunca se borran; se desactivan o vencen.
type SequenceUseCase struct {
	txRunner  BillingTxRunner
	rangeRepo repository.SequenceRangeRepository
	log       *logger.Logger
}

// NewSequenceUseCase construye el caso de uso.
func NewSequenceUseCase(txRunner BillingTxRunner, rangeRepo repository.SequenceRangeRepository, log *logger.Logger) *SequenceUseCase {
	return &SequenceUseCase{
		txRunner:  txRunner,
		rangeRepo: rangeRepo,
		log:       log.WithComponent("sequence_usecase"),
	}
}

// RegisterRange registra un rango autorizado. El control de solapamiento se
// hace con los rangos activos de la misma (empresa, tipo) bloqueados FOR
// UPDATE, para que dos registros concurrentes no puedan colarse solapados.
func (uc *SequenceUseCase) RegisterRange(ctx context.Context, companyID string, in dto.RegisterRangeRequest) (*dto.SequenceRangeResponse, error) {
	tipo := dgii.TipoECF(in.ECFType)
	if !dgii.EsTipoValido(tipo) {
		return nil, fmt.Errorf("%w: tipo de e-CF desconocido: %d", domain.ErrInvalidInput, in.ECFType)
	}
	if in.RangeFrom <= 0 || in.RangeTo < in.RangeFrom {
		return nil, fmt.Errorf("%w: rango [%d, %d] inválido", domain.ErrInvalidInput, in.RangeFrom, in.RangeTo)
	}
	dateFrom, err := time.Parse(fechaEntrada, in.DateFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: date_from %q no es YYYY-MM-DD", domain.ErrInvalidInput, in.DateFrom)
	}
	dateTo, err := time.Parse(fechaEntrada, in.DateTo)
	if err != nil {
		return nil, fmt.Errorf("%w: date_to %q no es YYYY-MM-DD", domain.ErrInvalidInput, in.DateTo)
	}
	if dateTo.Before(dateFrom) {
		return nil, fmt.Errorf("%w: la vigencia termina antes de empezar", domain.ErrInvalidInput)
	}

	now := time.Now()
	rg := &entity.SequenceRange{
		ID:         uuid.New().String(),
		CompanyID:  companyID,
		Tipo:       tipo,
		AuthNumber: in.AuthNumber,
		RangeFrom:  in.RangeFrom,
		RangeTo:    in.RangeTo,
		Current:    in.RangeFrom,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = uc.txRunner.RunBilling(ctx, func(
		rangeRepo repository.SequenceRangeRepository,
		_ repository.InvoiceRepository,
		_ repository.ContingencyRepository,
	) error {
		activos, err := rangeRepo.LockForAllocation(ctx, companyID, tipo)
		if err != nil {
			return err
		}
		for _, otro := range activos {
			if rg.Solapa(otro) {
				return fmt.Errorf("%w: [%d, %d] cruza con el rango %s [%d, %d]",
					domain.ErrRangoSolapado, rg.RangeFrom, rg.RangeTo, otro.ID, otro.RangeFrom, otro.RangeTo)
			}
		}
		return rangeRepo.Create(ctx, rg)
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().Str("range_id", rg.ID).Str("company_id", companyID).
		Int("tipo", in.ECFType).Int64("from", rg.RangeFrom).Int64("to", rg.RangeTo).
		Msg("rango de secuencias registrado")

	return toRangeResponse(rg, now), nil
}

// ListRanges lista los rangos de la empresa con sus secuencias restantes.
func (uc *SequenceUseCase) ListRanges(ctx context.Context, companyID string) ([]dto.SequenceRangeResponse, error) {
	ranges, err := uc.rangeRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]dto.SequenceRangeResponse, 0, len(ranges))
	for _, rg := range ranges {
		out = append(out, *toRangeResponse(rg, now))
	}
	return out, nil
}

// DeactivateRange retira un rango de la asignación sin borrarlo. Las
// secuencias ya consumidas conservan su auditoría.
func (uc *SequenceUseCase) DeactivateRange(ctx context.Context, companyID, id string) (*dto.SequenceRangeResponse, error) {
	rg, err := uc.rangeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rg == nil {
		return nil, domain.ErrNotFound
	}
	if rg.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	if rg.IsActive {
		rg.IsActive = false
		rg.UpdatedAt = time.Now()
		if err := uc.rangeRepo.Update(ctx, rg); err != nil {
			return nil, err
		}
		uc.log.Info().Str("range_id", rg.ID).Msg("rango desactivado")
	}
	return toRangeResponse(rg, time.Now()), nil
}

func toRangeResponse(rg *entity.SequenceRange, now time.Time) *dto.SequenceRangeResponse {
	return &dto.SequenceRangeResponse{
		ID:         rg.ID,
		CompanyID:  rg.CompanyID,
		ECFType:    int(rg.Tipo),
		AuthNumber: rg.AuthNumber,
		RangeFrom:  rg.RangeFrom,
		RangeTo:    rg.RangeTo,
		Current:    rg.Current,
		Available:  rg.Disponibles(),
		DateFrom:   rg.DateFrom.Format(fechaEntrada),
		DateTo:     rg.DateTo.Format(fechaEntrada),
		IsActive:   rg.IsActive,
		Exhausted:  rg.Agotado(),
		Expired:    rg.Vencido(now),
	}
}

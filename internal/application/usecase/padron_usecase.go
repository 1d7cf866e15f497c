package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/Facturacion-ecf/internal/application/dto"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

// PadronUseCase consulta el padrón de contribuyentes DGII. Es la verificación
// previa a la emisión: antes de pedir un crédito fiscal para un comprador
// conviene saber si su RNC existe y está activo. La consulta no participa en
// la validación del comprobante: el veredicto final sobre el comprador lo da
// la DGII al procesar el e-CF.
type PadronUseCase struct {
	repo repository.PadronRepository
}

// NewPadronUseCase construye el caso de uso.
func NewPadronUseCase(repo repository.PadronRepository) *PadronUseCase {
	return &PadronUseCase{repo: repo}
}

// Lookup busca un contribuyente por RNC o cédula. Rechaza identificaciones
// con dígito verificador inválido antes de tocar la base; devuelve nil si la
// identificación es válida pero no figura en el padrón.
func (uc *PadronUseCase) Lookup(ctx context.Context, id string) (*dto.PadronEntryResponse, error) {
	id = strings.TrimSpace(id)
	if err := dgii.ValidarIdentificacion(id); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	entry, err := uc.repo.GetByRNC(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return toPadronResponse(entry), nil
}

// Search busca contribuyentes por razón social o nombre comercial.
func (uc *PadronUseCase) Search(ctx context.Context, nombre string, limit int) (*dto.PadronSearchResponse, error) {
	nombre = strings.TrimSpace(nombre)
	if len(nombre) < 3 {
		return nil, fmt.Errorf("%w: la búsqueda requiere al menos 3 caracteres", domain.ErrInvalidInput)
	}
	list, err := uc.repo.SearchByName(ctx, nombre, limit)
	if err != nil {
		return nil, err
	}
	items := make([]dto.PadronEntryResponse, 0, len(list))
	for _, p := range list {
		items = append(items, *toPadronResponse(p))
	}
	return &dto.PadronSearchResponse{Items: items, Query: nombre}, nil
}

func toPadronResponse(p *entity.PadronEntry) *dto.PadronEntryResponse {
	return &dto.PadronEntryResponse{
		RNC:       p.RNC,
		Name:      p.Name,
		TradeName: p.TradeName,
		Activity:  p.Activity,
		Status:    p.Status,
		Active:    p.Activo(),
	}
}

package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Facturacion-ecf/internal/application/dto"
	"github.com/jhoicas/Facturacion-ecf/internal/application/usecase"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
)

// PadronHandler expone la consulta del padrón de contribuyentes DGII.
type PadronHandler struct {
	uc *usecase.PadronUseCase
}

// NewPadronHandler construye el handler inyectando el caso de uso.
func NewPadronHandler(uc *usecase.PadronUseCase) *PadronHandler {
	return &PadronHandler{uc: uc}
}

// Lookup godoc
// @Summary      Consultar RNC en el padrón
// @Description  Busca un contribuyente por RNC (9 dígitos) o cédula (11 dígitos) en el padrón DGII cargado localmente.
// @Tags         padron
// @Produce      json
// @Security     BearerAuth
// @Param        rnc  path  string  true  "RNC o cédula"
// @Success      200  {object}  dto.PadronEntryResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/padron/{rnc} [get]
func (h *PadronHandler) Lookup(c *fiber.Ctx) error {
	out, err := h.uc.Lookup(c.Context(), c.Params("rnc"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if out == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "contribuyente no figura en el padrón"})
	}
	return c.JSON(out)
}

// Search godoc
// @Summary      Buscar contribuyentes por nombre
// @Description  Busca en el padrón por razón social o nombre comercial (mínimo 3 caracteres).
// @Tags         padron
// @Produce      json
// @Security     BearerAuth
// @Param        q      query  string  true   "Texto a buscar"
// @Param        limit  query  int     false  "Límite"  default(20)
// @Success      200    {object}  dto.PadronSearchResponse
// @Failure      400    {object}  dto.ErrorResponse
// @Router       /api/padron [get]
func (h *PadronHandler) Search(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit > 100 {
		limit = 100
	}
	out, err := h.uc.Search(c.Context(), c.Query("q"), limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

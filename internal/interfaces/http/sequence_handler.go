package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Facturacion-ecf/internal/application/billing"
	"github.com/jhoicas/Facturacion-ecf/internal/application/dto"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
)

// SequenceHandler maneja los rangos de secuencias e-NCF autorizados por la DGII.
type SequenceHandler struct {
	uc *billing.SequenceUseCase
}

// NewSequenceHandler construye el handler.
func NewSequenceHandler(uc *billing.SequenceUseCase) *SequenceHandler {
	return &SequenceHandler{uc: uc}
}

// Register godoc
// @Summary      Registrar rango de secuencias
// @Description  Registra un rango autorizado por la DGII. Rechaza rangos que se solapen con otro activo del mismo tipo.
// @Tags         sequences
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterRangeRequest  true  "Rango autorizado"
// @Success      201   {object}  dto.SequenceRangeResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sequences [post]
func (h *SequenceHandler) Register(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.RegisterRangeRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := validate.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos", Details: validationDetails(err)})
	}
	out, err := h.uc.RegisterRange(c.Context(), companyID, in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		if errors.Is(err, domain.ErrRangoSolapado) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "RANGE_OVERLAP", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar rangos de secuencias
// @Description  Lista los rangos del emisor con secuencias disponibles y marcas de agotado/vencido.
// @Tags         sequences
// @Produce      json
// @Success      200  {array}  dto.SequenceRangeResponse
// @Security     BearerAuth
// @Router       /api/sequences [get]
func (h *SequenceHandler) List(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	out, err := h.uc.ListRanges(c.Context(), companyID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// Deactivate godoc
// @Summary      Desactivar rango
// @Description  Retira un rango de la asignación. Las secuencias ya consumidas no se ven afectadas.
// @Tags         sequences
// @Produce      json
// @Param        id   path  string  true  "ID del rango"
// @Success      200  {object}  dto.SequenceRangeResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sequences/{id}/deactivate [post]
func (h *SequenceHandler) Deactivate(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	out, err := h.uc.DeactivateRange(c.Context(), companyID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "rango no encontrado"})
		}
		if errors.Is(err, domain.ErrForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

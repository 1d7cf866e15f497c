package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/Facturacion-ecf/internal/application/billing"
	"github.com/jhoicas/Facturacion-ecf/internal/application/dto"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	domdgii "github.com/jhoicas/Facturacion-ecf/internal/domain/dgii"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

// InvoiceHandler maneja las peticiones HTTP de comprobantes (protegido).
type InvoiceHandler struct {
	uc     *billing.CreateInvoiceUseCase
	voidUC *billing.VoidInvoiceUseCase
	orch   *billing.ECFOrchestrator
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(uc *billing.CreateInvoiceUseCase, voidUC *billing.VoidInvoiceUseCase, orch *billing.ECFOrchestrator) *InvoiceHandler {
	return &InvoiceHandler{uc: uc, voidUC: voidUC, orch: orch}
}

// Create godoc
// @Summary      Emitir comprobante
// @Description  Valida el comprobante, asigna la próxima secuencia e-NCF del rango autorizado y encola el envío a la DGII.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateInvoiceRequest  true  "Datos del comprobante"
// @Success      201   {object}  dto.InvoiceResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/invoices [post]
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := validate.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos", Details: validationDetails(err)})
	}
	invoice, err := h.uc.CreateInvoice(c.Context(), companyID, in)
	if err != nil {
		switch {
		case errors.Is(err, domdgii.ErrComprobanteInvalido):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "ECF_INVALID", Message: err.Error()})
		case errors.Is(err, domain.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		case errors.Is(err, domain.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "emisor no encontrado"})
		case errors.Is(err, domain.ErrForbidden):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "emisor inactivo o suspendido"})
		case errors.Is(err, domain.ErrSinRangoDisponible):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NO_RANGE", Message: err.Error()})
		case errors.Is(err, domain.ErrRangoAgotado):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "RANGE_EXHAUSTED", Message: err.Error()})
		case errors.Is(err, domain.ErrRangoVencido):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "RANGE_EXPIRED", Message: err.Error()})
		case errors.Is(err, domain.ErrConflictoAsignacion):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ALLOCATION_CONFLICT", Message: "no se pudo asignar la secuencia, intente de nuevo"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

// GetByID godoc
// @Summary      Obtener comprobante
// @Tags         invoices
// @Produce      json
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {object}  dto.InvoiceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	invoice, err := h.uc.GetInvoice(c.Context(), companyID, id)
	if err != nil {
		return h.mapLookupErr(c, err)
	}
	return c.JSON(invoice)
}

// List godoc
// @Summary      Listar comprobantes
// @Tags         invoices
// @Produce      json
// @Param        status  query  string  false  "Filtrar por estado (BORRADOR, ENVIADO, ACEPTADO, ...)"
// @Param        type    query  int     false  "Filtrar por tipo de e-CF (31, 32, ...)"
// @Param        limit   query  int     false  "Límite"   default(20)
// @Param        offset  query  int     false  "Offset"   default(0)
// @Success      200     {array}  dto.InvoiceResponse
// @Security     BearerAuth
// @Router       /api/invoices [get]
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	f := repository.InvoiceFilter{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if s := c.Query("status"); s != "" {
		st := entity.ECFStatus(s)
		if !st.EsValido() {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "estado desconocido: " + s})
		}
		f.Status = st
	}
	if t := c.QueryInt("type", 0); t != 0 {
		tipo := dgii.TipoECF(t)
		if !dgii.EsTipoValido(tipo) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tipo de e-CF desconocido"})
		}
		f.Tipo = tipo
	}
	out, err := h.uc.ListInvoices(c.Context(), companyID, f)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// Status godoc
// @Summary      Estado de un comprobante
// @Description  Devuelve el estado del ciclo de vida y la última respuesta de la DGII.
// @Tags         invoices
// @Produce      json
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {object}  dto.InvoiceStatusDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/invoices/{id}/status [get]
func (h *InvoiceHandler) Status(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	st, err := h.uc.GetInvoiceStatus(c.Context(), companyID, id)
	if err != nil {
		return h.mapLookupErr(c, err)
	}
	return c.JSON(st)
}

// RefreshStatus godoc
// @Summary      Refrescar estado contra la DGII
// @Description  Consulta el trackId en la DGII de forma síncrona y devuelve el estado resultante.
// @Tags         invoices
// @Produce      json
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {object}  dto.InvoiceStatusDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/invoices/{id}/refresh-status [post]
func (h *InvoiceHandler) RefreshStatus(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	// La consulta de pertenencia va primero: nadie refresca comprobantes ajenos.
	if _, err := h.uc.GetInvoiceStatus(c.Context(), companyID, id); err != nil {
		return h.mapLookupErr(c, err)
	}
	if err := h.orch.Poll(c.Context(), id); err != nil {
		if errors.Is(err, domain.ErrTransporteDGII) {
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "DGII_UNAVAILABLE", Message: "la DGII no respondió, intente más tarde"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	st, err := h.uc.GetInvoiceStatus(c.Context(), companyID, id)
	if err != nil {
		return h.mapLookupErr(c, err)
	}
	return c.JSON(st)
}

// Void godoc
// @Summary      Anular comprobante
// @Description  Anula un comprobante que aún no fue aceptado. La secuencia consumida no se reutiliza.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "ID del comprobante"
// @Param        body  body  dto.VoidInvoiceRequest  true  "Motivo de anulación"
// @Success      200   {object}  dto.InvoiceResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/invoices/{id}/void [post]
func (h *InvoiceHandler) Void(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	var in dto.VoidInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := validate.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos", Details: validationDetails(err)})
	}
	invoice, err := h.voidUC.VoidInvoice(c.Context(), companyID, id, in)
	if err != nil {
		if errors.Is(err, domain.ErrTransicionInvalida) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_TRANSITION", Message: err.Error()})
		}
		if errors.Is(err, domain.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "el comprobante cambió de estado, recargue e intente de nuevo"})
		}
		return h.mapLookupErr(c, err)
	}
	return c.JSON(invoice)
}

// mapLookupErr mapea errores comunes de búsqueda por ID.
func (h *InvoiceHandler) mapLookupErr(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "comprobante no encontrado"})
	}
	if errors.Is(err, domain.ErrForbidden) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}

package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-ecf/internal/application/billing"
	"github.com/jhoicas/Facturacion-ecf/internal/application/dto"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
)

type voidFixture struct {
	uc    *billing.VoidInvoiceUseCase
	invs  *memInvoiceRepo
	conts *memContingencyRepo
}

func newVoidFixture() *voidFixture {
	f := &voidFixture{
		invs:  newMemInvoiceRepo(),
		conts: newMemContingencyRepo(),
	}
	tx := &fakeTx{ranges: newMemRangeRepo(), invs: f.invs, conts: f.conts}
	f.uc = billing.NewVoidInvoiceUseCase(tx, f.invs, testLog())
	return f
}

func TestVoidInvoice_AnulaBorrador(t *testing.T) {
	f := newVoidFixture()
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	require.NoError(t, f.invs.Create(context.Background(), inv, lines))

	resp, err := f.uc.VoidInvoice(context.Background(), empresaID, "inv-1",
		dto.VoidInvoiceRequest{Reason: "monto digitado incorrecto"})
	require.NoError(t, err)
	assert.Equal(t, string(entity.EstadoAnulado), resp.Status)
	assert.Equal(t, "Anulado por el emisor: monto digitado incorrecto", resp.DGIIMessage)

	// La fila se conserva: el e-NCF queda consumido para siempre.
	stored, err := f.invs.GetByID(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoAnulado, stored.Status)
	assert.Equal(t, "E310000000001", stored.ENCF)
}

func TestVoidInvoice_SinMotivoNoTocaElMensaje(t *testing.T) {
	f := newVoidFixture()
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	inv.DGIIMessage = "la recepción devolvió 503"
	require.NoError(t, f.invs.Create(context.Background(), inv, lines))

	resp, err := f.uc.VoidInvoice(context.Background(), empresaID, "inv-1", dto.VoidInvoiceRequest{})
	require.NoError(t, err)
	assert.Equal(t, "la recepción devolvió 503", resp.DGIIMessage)
}

// Anular durante la contingencia cierra el evento con desenlace ANULADA en la
// misma transacción: el monitor deja de verlo en el próximo barrido.
func TestVoidInvoice_CierraLaContingencia(t *testing.T) {
	f := newVoidFixture()
	t0 := time.Now().Add(-3 * time.Hour)
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoContingencia)
	inv.ContingencyAt = &t0
	require.NoError(t, f.invs.Create(context.Background(), inv, lines))
	require.NoError(t, f.conts.Create(context.Background(), &entity.ContingencyEvent{
		ID: "ev-1", InvoiceID: "inv-1", CompanyID: empresaID,
		Reason: "la recepción devolvió 503", StartedAt: t0,
	}))

	_, err := f.uc.VoidInvoice(context.Background(), empresaID, "inv-1",
		dto.VoidInvoiceRequest{Reason: "cliente canceló la compra"})
	require.NoError(t, err)

	eventos := f.conts.eventos("inv-1")
	require.Len(t, eventos, 1)
	assert.Equal(t, entity.ContingenciaAnulada, eventos[0].Outcome)
	require.NotNil(t, eventos[0].ResolvedAt)
}

func TestVoidInvoice_EstadosAnulables(t *testing.T) {
	anulables := []entity.ECFStatus{
		entity.EstadoBorrador,
		entity.EstadoContingencia,
		entity.EstadoRechazado,
		entity.EstadoError,
	}
	for _, estado := range anulables {
		t.Run(string(estado), func(t *testing.T) {
			f := newVoidFixture()
			inv, lines := comprobanteGuardado("inv-1", estado)
			require.NoError(t, f.invs.Create(context.Background(), inv, lines))

			_, err := f.uc.VoidInvoice(context.Background(), empresaID, "inv-1", dto.VoidInvoiceRequest{})
			assert.NoError(t, err)
		})
	}
}

// Un comprobante aceptado no se anula: se corrige con nota de crédito.
func TestVoidInvoice_NoAnulaAceptados(t *testing.T) {
	noAnulables := []entity.ECFStatus{
		entity.EstadoProcesando,
		entity.EstadoEnviado,
		entity.EstadoAceptado,
		entity.EstadoCondicional,
	}
	for _, estado := range noAnulables {
		t.Run(string(estado), func(t *testing.T) {
			f := newVoidFixture()
			inv, lines := comprobanteGuardado("inv-1", estado)
			require.NoError(t, f.invs.Create(context.Background(), inv, lines))

			_, err := f.uc.VoidInvoice(context.Background(), empresaID, "inv-1", dto.VoidInvoiceRequest{})
			assert.ErrorIs(t, err, domain.ErrTransicionInvalida)

			stored, err := f.invs.GetByID(context.Background(), "inv-1")
			require.NoError(t, err)
			assert.Equal(t, estado, stored.Status, "el estado no se toca")
		})
	}
}

func TestVoidInvoice_DeOtraEmpresaEsForbidden(t *testing.T) {
	f := newVoidFixture()
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	require.NoError(t, f.invs.Create(context.Background(), inv, lines))

	_, err := f.uc.VoidInvoice(context.Background(), "otra-empresa", "inv-1", dto.VoidInvoiceRequest{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestVoidInvoice_Inexistente(t *testing.T) {
	f := newVoidFixture()
	_, err := f.uc.VoidInvoice(context.Background(), empresaID, "no-existe", dto.VoidInvoiceRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Reaplicar el mismo estado es transición legal, así que anular dos veces es
// idempotente: el reintento de un cliente no recibe error.
func TestVoidInvoice_DobleAnulacionEsIdempotente(t *testing.T) {
	f := newVoidFixture()
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	require.NoError(t, f.invs.Create(context.Background(), inv, lines))

	_, err := f.uc.VoidInvoice(context.Background(), empresaID, "inv-1", dto.VoidInvoiceRequest{})
	require.NoError(t, err)

	resp, err := f.uc.VoidInvoice(context.Background(), empresaID, "inv-1", dto.VoidInvoiceRequest{})
	require.NoError(t, err)
	assert.Equal(t, string(entity.EstadoAnulado), resp.Status)
}

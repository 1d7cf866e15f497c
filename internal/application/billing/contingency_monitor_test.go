package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-ecf/internal/application/billing"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
)

// Hora de referencia fija: el barrido recibe el reloj por parámetro, así el
// borde de las 72 horas se prueba al minuto.
var horaBase = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type monitorFixture struct {
	mon   *billing.ContingencyMonitor
	invs  *memInvoiceRepo
	conts *memContingencyRepo
	enq   *fakeEnqueuer
}

func newMonitorFixture(plazoHoras int) *monitorFixture {
	f := &monitorFixture{
		invs:  newMemInvoiceRepo(),
		conts: newMemContingencyRepo(),
		enq:   &fakeEnqueuer{},
	}
	tx := &fakeTx{ranges: newMemRangeRepo(), invs: f.invs, conts: f.conts}
	f.mon = billing.NewContingencyMonitor(tx, f.invs, f.enq, plazoHoras, testLog())
	return f
}

// enContingencia guarda un comprobante CONTINGENCIA con su evento abierto,
// como lo deja el orquestador al fallar el transporte.
func (f *monitorFixture) enContingencia(t *testing.T, id string, seq int64, desde time.Time) {
	t.Helper()
	inv, lines := comprobanteGuardado(id, entity.EstadoContingencia)
	inv.ENCF = encfParaSecuencia(seq)
	inv.Secuencia = seq
	inv.ContingencyAt = &desde
	require.NoError(t, f.invs.Create(context.Background(), inv, lines))
	require.NoError(t, f.conts.Create(context.Background(), &entity.ContingencyEvent{
		ID: id + "-ev", InvoiceID: id, CompanyID: empresaID,
		Reason: "la recepción devolvió 503", StartedAt: desde,
	}))
}

func TestScan_ReencolaDentroDelPlazo(t *testing.T) {
	f := newMonitorFixture(72)
	f.enContingencia(t, "inv-1", 1, horaBase)

	// A las 71h59m todavía se reintenta.
	require.NoError(t, f.mon.Scan(context.Background(), horaBase.Add(72*time.Hour-time.Minute), 100))

	assert.Equal(t, []string{"inv-1"}, f.enq.encolados())

	inv, err := f.invs.GetByID(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoContingencia, inv.Status)

	ev, err := f.conts.GetOpenByInvoice(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.True(t, ev.Abierta())
}

func TestScan_EscalaAlVencerElPlazo(t *testing.T) {
	f := newMonitorFixture(72)
	f.enContingencia(t, "inv-1", 1, horaBase)

	// A las 72h en punto el plazo está vencido.
	require.NoError(t, f.mon.Scan(context.Background(), horaBase.Add(72*time.Hour), 100))

	assert.Empty(t, f.enq.encolados(), "un comprobante vencido no se reintenta")

	inv, err := f.invs.GetByID(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoError, inv.Status)
	assert.Equal(t, domain.ErrContingenciaVencida.Error(), inv.DGIIMessage)

	eventos := f.conts.eventos("inv-1")
	require.Len(t, eventos, 1)
	assert.Equal(t, entity.ContingenciaEscalada, eventos[0].Outcome)
	require.NotNil(t, eventos[0].ResolvedAt)
}

// Un barrido mixto: reencola los que siguen dentro del plazo y escala los
// vencidos, cada uno por su propio reloj de entrada.
func TestScan_MixtoReencolaYEscala(t *testing.T) {
	f := newMonitorFixture(72)
	f.enContingencia(t, "inv-1", 1, horaBase.Add(-10*time.Hour))
	f.enContingencia(t, "inv-2", 2, horaBase.Add(-80*time.Hour))

	require.NoError(t, f.mon.Scan(context.Background(), horaBase, 100))

	assert.Equal(t, []string{"inv-1"}, f.enq.encolados())

	inv2, err := f.invs.GetByID(context.Background(), "inv-2")
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoError, inv2.Status)
}

// plazoHoras ≤ 0 cae en las 72 horas de la norma.
func TestScan_PlazoPorDefecto(t *testing.T) {
	f := newMonitorFixture(0)
	f.enContingencia(t, "inv-1", 1, horaBase.Add(-71*time.Hour))
	f.enContingencia(t, "inv-2", 2, horaBase.Add(-73*time.Hour))

	require.NoError(t, f.mon.Scan(context.Background(), horaBase, 100))

	assert.Equal(t, []string{"inv-1"}, f.enq.encolados())
}

func TestScan_PlazoConfigurable(t *testing.T) {
	f := newMonitorFixture(24)
	f.enContingencia(t, "inv-1", 1, horaBase.Add(-25*time.Hour))

	require.NoError(t, f.mon.Scan(context.Background(), horaBase, 100))

	inv, err := f.invs.GetByID(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoError, inv.Status)
}

func TestScan_SinContingenciasEsNoOp(t *testing.T) {
	f := newMonitorFixture(72)
	require.NoError(t, f.mon.Scan(context.Background(), horaBase, 100))
	assert.Empty(t, f.enq.encolados())
}

func TestScan_RespetaElLimite(t *testing.T) {
	f := newMonitorFixture(72)
	f.enContingencia(t, "inv-1", 1, horaBase)
	f.enContingencia(t, "inv-2", 2, horaBase)
	f.enContingencia(t, "inv-3", 3, horaBase)

	require.NoError(t, f.mon.Scan(context.Background(), horaBase.Add(time.Hour), 2))
	assert.Len(t, f.enq.encolados(), 2)
}

// Si un reintento en vuelo resuelve el comprobante mientras el barrido lo
// escala, la guarda optimista deja ganar al reintento y el barrido sigue.
func TestScan_ConflictoAlEscalarSeTolera(t *testing.T) {
	invs := newMemInvoiceRepo()
	conts := newMemContingencyRepo()
	enq := &fakeEnqueuer{}
	tx := &fakeTx{
		ranges: newMemRangeRepo(),
		invs:   &claimConflictInvoices{InvoiceRepository: invs, fallos: 1},
		conts:  conts,
	}
	mon := billing.NewContingencyMonitor(tx, invs, enq, 72, testLog())

	t0 := horaBase.Add(-80 * time.Hour)
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoContingencia)
	inv.ContingencyAt = &t0
	require.NoError(t, invs.Create(context.Background(), inv, lines))
	require.NoError(t, conts.Create(context.Background(), &entity.ContingencyEvent{
		ID: "ev-1", InvoiceID: "inv-1", CompanyID: empresaID,
		Reason: "la recepción devolvió 503", StartedAt: t0,
	}))

	require.NoError(t, mon.Scan(context.Background(), horaBase, 100))

	// El comprobante quedó como estaba y el evento sigue abierto: el otro
	// worker es quien decide el desenlace.
	stored, err := invs.GetByID(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoContingencia, stored.Status)
	_, err = conts.GetOpenByInvoice(context.Background(), "inv-1")
	assert.NoError(t, err)
}

package billing_test

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-ecf/internal/application/billing"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
	infradgii "github.com/jhoicas/Facturacion-ecf/internal/infrastructure/dgii"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

type orchFixture struct {
	orch   *billing.ECFOrchestrator
	comps  *memCompanyRepo
	ranges *memRangeRepo
	invs   *memInvoiceRepo
	conts  *memContingencyRepo
	sub    *fakeSubmitter
	signer *fakeSigner
}

func newOrchFixture(sub *fakeSubmitter) *orchFixture {
	f := &orchFixture{
		comps:  newMemCompanyRepo(empresaActiva()),
		ranges: newMemRangeRepo(rangoActivo("rango-1", 1, 100)),
		invs:   newMemInvoiceRepo(),
		conts:  newMemContingencyRepo(),
		sub:    sub,
		signer: &fakeSigner{},
	}
	tx := &fakeTx{ranges: f.ranges, invs: f.invs, conts: f.conts}
	f.orch = billing.NewECFOrchestrator(
		tx, f.invs, f.comps, f.ranges,
		infradgii.NewXMLBuilderService(), f.signer, f.sub,
		tls.Certificate{}, dgii.AmbienteTesteCF, testLog(),
	)
	return f
}

func (f *orchFixture) guardar(t *testing.T, inv *entity.Invoice, lines []*entity.InvoiceLine) {
	t.Helper()
	require.NoError(t, f.invs.Create(context.Background(), inv, lines))
}

func (f *orchFixture) estadoDe(t *testing.T, id string) *entity.Invoice {
	t.Helper()
	inv, err := f.invs.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, inv)
	return inv
}

func recepcionOK() *infradgii.ReceptionResult {
	return &infradgii.ReceptionResult{TrackID: "trk-001", Message: "e-CF recibido"}
}

func errTransporte() error {
	return fmt.Errorf("%w: la recepción devolvió 503", domain.ErrTransporteDGII)
}

// ──────────────────────────────────────────────────────────────────────────────
// Submit
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmit_EnviaYGuardaTrackID(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitRes: recepcionOK()})
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	f.guardar(t, inv, lines)

	require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))

	stored := f.estadoDe(t, "inv-1")
	assert.Equal(t, entity.EstadoEnviado, stored.Status)
	assert.Equal(t, "trk-001", stored.TrackID)
	assert.Equal(t, "e-CF recibido", stored.DGIIMessage)
	require.NotNil(t, stored.SubmittedAt)
	assert.Nil(t, stored.ContingencyAt)

	// La firma dejó su rastro: XML firmado, código de seguridad y QR.
	assert.Equal(t, "A1B2C3", stored.SecurityCode)
	assert.Contains(t, stored.XMLSigned, "<eNCF>E310000000001</eNCF>")
	assert.Contains(t, stored.XMLSigned, "<!--Signature-->")
	assert.Contains(t, stored.QRData, "CodigoSeguridad=A1B2C3")

	// La recepción recibió el XML firmado con el nombre {RNC}{eNCF}.xml.
	assert.Equal(t, 1, f.sub.submits)
	assert.Equal(t, emisorRNC+"E310000000001.xml", f.sub.lastFile)
	assert.Equal(t, dgii.AmbienteTesteCF, f.sub.lastEnv)
	assert.Equal(t, stored.XMLSigned, string(f.sub.lastXML))
}

// El ambiente configurado en la empresa pesa más que el global del worker.
func TestSubmit_AmbientePropioDeLaEmpresa(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitRes: recepcionOK()})
	empresa := empresaActiva()
	empresa.Environment = dgii.AmbienteECF
	require.NoError(t, f.comps.Update(context.Background(), empresa))
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	f.guardar(t, inv, lines)

	require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))
	assert.Equal(t, dgii.AmbienteECF, f.sub.lastEnv)
}

// El rango puede haberse borrado de la vista del worker (migración, limpieza);
// el envío no depende de él, solo pierde la fecha de vencimiento en el XML.
func TestSubmit_SinRangoIgualEnvia(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitRes: recepcionOK()})
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	inv.RangeID = "rango-desaparecido"
	f.guardar(t, inv, lines)

	require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))

	stored := f.estadoDe(t, "inv-1")
	assert.Equal(t, entity.EstadoEnviado, stored.Status)
	assert.NotContains(t, stored.XMLSigned, "FechaVencimientoSecuencia")
}

func TestSubmit_TransporteAbreContingencia(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitErr: errTransporte()})
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	f.guardar(t, inv, lines)

	// La tarea termina sin error: el monitor de contingencia es quien
	// programa los reintentos, no el backoff de la cola.
	require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))

	stored := f.estadoDe(t, "inv-1")
	assert.Equal(t, entity.EstadoContingencia, stored.Status)
	require.NotNil(t, stored.ContingencyAt)
	assert.Contains(t, stored.DGIIMessage, "503")

	ev, err := f.conts.GetOpenByInvoice(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Contains(t, ev.Reason, "503")
	assert.True(t, ev.StartedAt.Equal(*stored.ContingencyAt),
		"el evento y el comprobante comparten el inicio del plazo")
}

func TestSubmit_ReintentoFallidoNoReiniciaElPlazo(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitErr: errTransporte()})

	// Primera entrada a contingencia hace 25 horas, con su evento abierto.
	t0 := time.Now().Add(-25 * time.Hour)
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoContingencia)
	inv.ContingencyAt = &t0
	f.guardar(t, inv, lines)
	require.NoError(t, f.conts.Create(context.Background(), &entity.ContingencyEvent{
		ID: "ev-1", InvoiceID: "inv-1", CompanyID: empresaID,
		Reason: "la recepción devolvió 503", StartedAt: t0,
	}))

	require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))

	stored := f.estadoDe(t, "inv-1")
	assert.Equal(t, entity.EstadoContingencia, stored.Status)
	require.NotNil(t, stored.ContingencyAt)
	assert.True(t, stored.ContingencyAt.Equal(t0), "el plazo legal corre desde la primera entrada")
	assert.Len(t, f.conts.eventos("inv-1"), 1, "los reintentos fallidos no abren eventos nuevos")
}

func TestSubmit_ReintentoDesdeContingenciaResuelve(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitRes: recepcionOK()})

	t0 := time.Now().Add(-2 * time.Hour)
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoContingencia)
	inv.ContingencyAt = &t0
	f.guardar(t, inv, lines)
	require.NoError(t, f.conts.Create(context.Background(), &entity.ContingencyEvent{
		ID: "ev-1", InvoiceID: "inv-1", CompanyID: empresaID,
		Reason: "la recepción devolvió 503", StartedAt: t0,
	}))

	require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))

	stored := f.estadoDe(t, "inv-1")
	assert.Equal(t, entity.EstadoEnviado, stored.Status)
	assert.Equal(t, "trk-001", stored.TrackID)
	assert.Nil(t, stored.ContingencyAt, "la contingencia quedó atrás")

	eventos := f.conts.eventos("inv-1")
	require.Len(t, eventos, 1)
	assert.Equal(t, entity.ContingenciaResuelta, eventos[0].Outcome)
	require.NotNil(t, eventos[0].ResolvedAt)
}

func TestSubmit_RechazoInmediato(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{
		submitErr: fmt.Errorf("%w: e-NCF duplicado", domain.ErrRechazoDGII),
	})
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	f.guardar(t, inv, lines)

	require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))

	stored := f.estadoDe(t, "inv-1")
	assert.Equal(t, entity.EstadoRechazado, stored.Status)
	assert.True(t, stored.Status.EsTerminal())
	assert.Contains(t, stored.DGIIMessage, "duplicado")
}

func TestSubmit_FalloDesconocidoEsError(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitErr: assert.AnError})
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	f.guardar(t, inv, lines)

	require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))

	stored := f.estadoDe(t, "inv-1")
	assert.Equal(t, entity.EstadoError, stored.Status)
	assert.Equal(t, assert.AnError.Error(), stored.DGIIMessage)
}

func TestSubmit_FirmaFallidaEsError(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitRes: recepcionOK()})
	f.signer.err = assert.AnError
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	f.guardar(t, inv, lines)

	require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))

	assert.Equal(t, entity.EstadoError, f.estadoDe(t, "inv-1").Status)
	assert.Zero(t, f.sub.submits, "sin firma no hay envío")
}

func TestSubmit_EmpresaDesconocidaEsError(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitRes: recepcionOK()})
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	inv.CompanyID = "empresa-fantasma"
	f.guardar(t, inv, lines)

	require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))

	stored := f.estadoDe(t, "inv-1")
	assert.Equal(t, entity.EstadoError, stored.Status)
	assert.Contains(t, stored.DGIIMessage, "empresa no encontrada")
}

func TestSubmit_SinLineasEsError(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitRes: recepcionOK()})
	inv, _ := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	f.guardar(t, inv, nil)

	require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))

	stored := f.estadoDe(t, "inv-1")
	assert.Equal(t, entity.EstadoError, stored.Status)
	assert.Contains(t, stored.DGIIMessage, "sin líneas")
}

func TestSubmit_EstadosNoEnviablesSeSaltan(t *testing.T) {
	estados := []entity.ECFStatus{
		entity.EstadoEnviado,
		entity.EstadoAceptado,
		entity.EstadoCondicional,
		entity.EstadoRechazado,
		entity.EstadoError,
		entity.EstadoAnulado,
	}
	for _, estado := range estados {
		t.Run(string(estado), func(t *testing.T) {
			f := newOrchFixture(&fakeSubmitter{submitRes: recepcionOK()})
			inv, lines := comprobanteGuardado("inv-1", estado)
			f.guardar(t, inv, lines)

			require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))

			assert.Equal(t, estado, f.estadoDe(t, "inv-1").Status, "el estado no se toca")
			assert.Zero(t, f.sub.submits)
		})
	}
}

// Un PROCESANDO huérfano (worker caído a mitad de corrida) se reclama de
// nuevo: reaplicar el mismo estado es transición legal.
func TestSubmit_ProcesandoHuerfanoSeReclama(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitRes: recepcionOK()})
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoProcesando)
	f.guardar(t, inv, lines)

	require.NoError(t, f.orch.Submit(context.Background(), "inv-1"))

	assert.Equal(t, entity.EstadoEnviado, f.estadoDe(t, "inv-1").Status)
	assert.Equal(t, 1, f.sub.submits)
}

// claimConflictInvoices fuerza ErrConflict en los primeros UpdateStatus, como
// si otro worker hubiera reclamado el comprobante un instante antes.
type claimConflictInvoices struct {
	repository.InvoiceRepository
	fallos int32
	calls  int32
}

func (c *claimConflictInvoices) UpdateStatus(ctx context.Context, inv *entity.Invoice, prev entity.ECFStatus) error {
	if atomic.AddInt32(&c.calls, 1) <= c.fallos {
		return domain.ErrConflict
	}
	return c.InvoiceRepository.UpdateStatus(ctx, inv, prev)
}

func TestSubmit_OtroWorkerGanaElReclamo(t *testing.T) {
	comps := newMemCompanyRepo(empresaActiva())
	ranges := newMemRangeRepo(rangoActivo("rango-1", 1, 100))
	invs := newMemInvoiceRepo()
	conts := newMemContingencyRepo()
	sub := &fakeSubmitter{submitRes: recepcionOK()}
	orch := billing.NewECFOrchestrator(
		&fakeTx{ranges: ranges, invs: invs, conts: conts},
		&claimConflictInvoices{InvoiceRepository: invs, fallos: 1}, comps, ranges,
		infradgii.NewXMLBuilderService(), &fakeSigner{}, sub,
		tls.Certificate{}, dgii.AmbienteTesteCF, testLog(),
	)
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	require.NoError(t, invs.Create(context.Background(), inv, lines))

	// El perdedor se retira sin error y sin enviar nada.
	require.NoError(t, orch.Submit(context.Background(), "inv-1"))
	assert.Zero(t, sub.submits)

	stored, err := invs.GetByID(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, entity.EstadoBorrador, stored.Status)
}

func TestSubmit_ComprobanteInexistente(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitRes: recepcionOK()})
	require.NoError(t, f.orch.Submit(context.Background(), "no-existe"))
	assert.Zero(t, f.sub.submits)
}

// ──────────────────────────────────────────────────────────────────────────────
// Poll
// ──────────────────────────────────────────────────────────────────────────────

// enviado guarda un comprobante ENVIADO con TrackId pendiente de consulta.
func (f *orchFixture) enviado(t *testing.T, id string) {
	t.Helper()
	inv, lines := comprobanteGuardado(id, entity.EstadoEnviado)
	inv.TrackID = "trk-001"
	f.guardar(t, inv, lines)
}

func TestPoll_Aceptado(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{
		statusRes: &infradgii.StatusResult{TrackID: "trk-001", Codigo: dgii.EstadoDGIIAceptado, Estado: "Aceptado"},
	})
	f.enviado(t, "inv-1")

	require.NoError(t, f.orch.Poll(context.Background(), "inv-1"))

	assert.Equal(t, entity.EstadoAceptado, f.estadoDe(t, "inv-1").Status)
	assert.Equal(t, 1, f.sub.queries)
}

// La aceptación DGII de un comprobante que salió con la tolerancia de
// totales excedida se degrada a ACEPTADO_CONDICIONAL.
func TestPoll_AceptadoConToleranciaQuedaCondicional(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{
		statusRes: &infradgii.StatusResult{TrackID: "trk-001", Codigo: dgii.EstadoDGIIAceptado, Estado: "Aceptado"},
	})
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoEnviado)
	inv.TrackID = "trk-001"
	inv.ToleranciaExcedida = true
	f.guardar(t, inv, lines)

	require.NoError(t, f.orch.Poll(context.Background(), "inv-1"))
	assert.Equal(t, entity.EstadoCondicional, f.estadoDe(t, "inv-1").Status)
}

func TestPoll_AceptadoCondicional(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{
		statusRes: &infradgii.StatusResult{
			TrackID: "trk-001", Codigo: dgii.EstadoDGIIAceptadoCondicional,
			Estado: "Aceptado Condicional", Mensajes: "totales con desviación tolerada",
		},
	})
	f.enviado(t, "inv-1")

	require.NoError(t, f.orch.Poll(context.Background(), "inv-1"))

	stored := f.estadoDe(t, "inv-1")
	assert.Equal(t, entity.EstadoCondicional, stored.Status)
	assert.Equal(t, "totales con desviación tolerada", stored.DGIIMessage)
}

func TestPoll_Rechazado(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{
		statusRes: &infradgii.StatusResult{
			TrackID: "trk-001", Codigo: dgii.EstadoDGIIRechazado,
			Estado: "Rechazado", Mensajes: "el RNC del comprador no existe en el padrón",
		},
	})
	f.enviado(t, "inv-1")

	require.NoError(t, f.orch.Poll(context.Background(), "inv-1"))

	stored := f.estadoDe(t, "inv-1")
	assert.Equal(t, entity.EstadoRechazado, stored.Status)
	assert.Contains(t, stored.DGIIMessage, "padrón")
}

func TestPoll_EstadosIntermediosEsperan(t *testing.T) {
	casos := []struct {
		nombre string
		codigo int
	}{
		{"en proceso", dgii.EstadoDGIIEnProceso},
		{"sin registro todavía", dgii.EstadoDGIINoEncontrado},
		{"código desconocido", 9},
	}
	for _, c := range casos {
		t.Run(c.nombre, func(t *testing.T) {
			f := newOrchFixture(&fakeSubmitter{
				statusRes: &infradgii.StatusResult{TrackID: "trk-001", Codigo: c.codigo},
			})
			f.enviado(t, "inv-1")

			require.NoError(t, f.orch.Poll(context.Background(), "inv-1"))

			// Queda ENVIADO a la espera del próximo barrido.
			assert.Equal(t, entity.EstadoEnviado, f.estadoDe(t, "inv-1").Status)
		})
	}
}

func TestPoll_TerminalEsNoOp(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{})
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoAceptado)
	inv.TrackID = "trk-001"
	f.guardar(t, inv, lines)

	require.NoError(t, f.orch.Poll(context.Background(), "inv-1"))
	assert.Zero(t, f.sub.queries)
}

func TestPoll_SinTrackIDEsNoOp(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{})
	inv, lines := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	f.guardar(t, inv, lines)

	require.NoError(t, f.orch.Poll(context.Background(), "inv-1"))
	assert.Zero(t, f.sub.queries)
}

// Un fallo de transporte en la consulta se propaga: la cola reintenta la
// tarea y el estado no cambia.
func TestPoll_FalloDeConsultaPropaga(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{statusErr: assert.AnError})
	f.enviado(t, "inv-1")

	err := f.orch.Poll(context.Background(), "inv-1")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, entity.EstadoEnviado, f.estadoDe(t, "inv-1").Status)
}

// ──────────────────────────────────────────────────────────────────────────────
// Barridos
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmitPending_BarreLosBorradores(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{submitRes: recepcionOK()})

	b1, l1 := comprobanteGuardado("inv-1", entity.EstadoBorrador)
	f.guardar(t, b1, l1)
	b2, l2 := comprobanteGuardado("inv-2", entity.EstadoBorrador)
	b2.ENCF = encfParaSecuencia(2)
	b2.Secuencia = 2
	f.guardar(t, b2, l2)
	a3, l3 := comprobanteGuardado("inv-3", entity.EstadoAceptado)
	a3.ENCF = encfParaSecuencia(3)
	a3.Secuencia = 3
	f.guardar(t, a3, l3)

	require.NoError(t, f.orch.SubmitPending(context.Background(), 10))

	assert.Equal(t, entity.EstadoEnviado, f.estadoDe(t, "inv-1").Status)
	assert.Equal(t, entity.EstadoEnviado, f.estadoDe(t, "inv-2").Status)
	assert.Equal(t, entity.EstadoAceptado, f.estadoDe(t, "inv-3").Status)
	assert.Equal(t, 2, f.sub.submits)
}

func TestPollPending_ConsultaLosEnviados(t *testing.T) {
	f := newOrchFixture(&fakeSubmitter{
		statusRes: &infradgii.StatusResult{TrackID: "trk-001", Codigo: dgii.EstadoDGIIAceptado, Estado: "Aceptado"},
	})
	f.enviado(t, "inv-1")
	e2, l2 := comprobanteGuardado("inv-2", entity.EstadoEnviado)
	e2.ENCF = encfParaSecuencia(2)
	e2.Secuencia = 2
	e2.TrackID = "trk-002"
	f.guardar(t, e2, l2)

	require.NoError(t, f.orch.PollPending(context.Background(), 10))

	assert.Equal(t, entity.EstadoAceptado, f.estadoDe(t, "inv-1").Status)
	assert.Equal(t, entity.EstadoAceptado, f.estadoDe(t, "inv-2").Status)
	assert.Equal(t, 2, f.sub.queries)
}

package billing_test

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Facturacion-ecf/internal/application/dto"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
	infradgii "github.com/jhoicas/Facturacion-ecf/internal/infrastructure/dgii"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
	"github.com/jhoicas/Facturacion-ecf/pkg/logger"
)

// RNCs con dígito verificador correcto (ver pkg/dgii/rnc_test.go).
const (
	emisorRNC    = "101023122"
	compradorRNC = "401234564"

	empresaID = "empresa-001"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLog() *logger.Logger {
	return logger.New(logger.Config{Env: "test", Level: "error"})
}

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria. Copian al leer y al escribir, igual que las filas que lee
// y escribe Postgres: mutar lo devuelto no toca lo almacenado, así las guardas
// optimistas (UpdateCurrent, UpdateStatus) se ejercitan de verdad.
// ──────────────────────────────────────────────────────────────────────────────

type memCompanyRepo struct {
	mu        sync.Mutex
	companies map[string]entity.Company
}

func newMemCompanyRepo(cs ...*entity.Company) *memCompanyRepo {
	r := &memCompanyRepo{companies: map[string]entity.Company{}}
	for _, c := range cs {
		r.companies[c.ID] = *c
	}
	return r
}

func (r *memCompanyRepo) Create(_ context.Context, c *entity.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.companies[c.ID] = *c
	return nil
}

func (r *memCompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.companies[id]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (r *memCompanyRepo) GetByRNC(_ context.Context, rnc string) (*entity.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.companies {
		if c.RNC == rnc {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCompanyRepo) Update(_ context.Context, c *entity.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.companies[c.ID] = *c
	return nil
}

func (r *memCompanyRepo) List(_ context.Context, limit, offset int) ([]*entity.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Company, 0, len(r.companies))
	for _, c := range r.companies {
		cp := c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return pagina(out, limit, offset), nil
}

type memRangeRepo struct {
	mu     sync.Mutex
	ranges map[string]entity.SequenceRange
}

func newMemRangeRepo(rs ...*entity.SequenceRange) *memRangeRepo {
	r := &memRangeRepo{ranges: map[string]entity.SequenceRange{}}
	for _, rg := range rs {
		r.ranges[rg.ID] = *rg
	}
	return r
}

func (r *memRangeRepo) Create(_ context.Context, rg *entity.SequenceRange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, otro := range r.ranges {
		if otro.CompanyID == rg.CompanyID && otro.Tipo == rg.Tipo && otro.AuthNumber == rg.AuthNumber {
			return fmt.Errorf("%w: autorización ya registrada", domain.ErrDuplicate)
		}
	}
	r.ranges[rg.ID] = *rg
	return nil
}

func (r *memRangeRepo) GetByID(_ context.Context, id string) (*entity.SequenceRange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rg, ok := r.ranges[id]
	if !ok {
		return nil, nil
	}
	cp := rg
	return &cp, nil
}

func (r *memRangeRepo) LockForAllocation(_ context.Context, companyID string, tipo dgii.TipoECF) ([]*entity.SequenceRange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.SequenceRange
	for _, rg := range r.ranges {
		if rg.CompanyID == companyID && rg.Tipo == tipo && rg.IsActive {
			cp := rg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRangeRepo) ListByCompany(_ context.Context, companyID string) ([]*entity.SequenceRange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.SequenceRange
	for _, rg := range r.ranges {
		if rg.CompanyID == companyID {
			cp := rg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRangeRepo) UpdateCurrent(_ context.Context, id string, prev, next int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rg, ok := r.ranges[id]
	if !ok || rg.Current != prev {
		return domain.ErrConflictoAsignacion
	}
	rg.Current = next
	rg.UpdatedAt = time.Now()
	r.ranges[id] = rg
	return nil
}

func (r *memRangeRepo) Update(_ context.Context, rg *entity.SequenceRange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ranges[rg.ID]; !ok {
		return domain.ErrNotFound
	}
	r.ranges[rg.ID] = *rg
	return nil
}

type memInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]entity.Invoice
	lines    map[string][]entity.InvoiceLine
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{
		invoices: map[string]entity.Invoice{},
		lines:    map[string][]entity.InvoiceLine{},
	}
}

func (r *memInvoiceRepo) Create(_ context.Context, inv *entity.Invoice, lines []*entity.InvoiceLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, otro := range r.invoices {
		if otro.CompanyID == inv.CompanyID && otro.ENCF == inv.ENCF {
			return fmt.Errorf("%w: e-NCF %s ya emitido", domain.ErrDuplicate, inv.ENCF)
		}
	}
	r.invoices[inv.ID] = *inv
	ls := make([]entity.InvoiceLine, 0, len(lines))
	for _, l := range lines {
		ls = append(ls, *l)
	}
	r.lines[inv.ID] = ls
	return nil
}

func (r *memInvoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, nil
	}
	cp := inv
	return &cp, nil
}

func (r *memInvoiceRepo) GetByENCF(_ context.Context, companyID, encf string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.CompanyID == companyID && inv.ENCF == encf {
			cp := inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memInvoiceRepo) GetLines(_ context.Context, invoiceID string) ([]*entity.InvoiceLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls := r.lines[invoiceID]
	out := make([]*entity.InvoiceLine, 0, len(ls))
	for i := range ls {
		cp := ls[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memInvoiceRepo) List(_ context.Context, companyID string, f repository.InvoiceFilter) ([]*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if inv.CompanyID != companyID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.Tipo != 0 && inv.Tipo != f.Tipo {
			continue
		}
		cp := inv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return pagina(out, f.Limit, f.Offset), nil
}

func (r *memInvoiceRepo) ListByStatus(_ context.Context, status entity.ECFStatus, limit int) ([]*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if inv.Status == status {
			cp := inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memInvoiceRepo) UpdateStatus(_ context.Context, inv *entity.Invoice, prev entity.ECFStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok || stored.Status != prev {
		return domain.ErrConflict
	}
	cp := *inv
	cp.UpdatedAt = time.Now()
	r.invoices[inv.ID] = cp
	return nil
}

func (r *memInvoiceRepo) CountByStatus(_ context.Context) (map[entity.ECFStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[entity.ECFStatus]int64{}
	for _, inv := range r.invoices {
		out[inv.Status]++
	}
	return out, nil
}

type memContingencyRepo struct {
	mu     sync.Mutex
	events map[string]entity.ContingencyEvent // por ID
}

func newMemContingencyRepo() *memContingencyRepo {
	return &memContingencyRepo{events: map[string]entity.ContingencyEvent{}}
}

func (r *memContingencyRepo) Create(_ context.Context, ev *entity.ContingencyEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[ev.ID] = *ev
	return nil
}

func (r *memContingencyRepo) GetOpenByInvoice(_ context.Context, invoiceID string) (*entity.ContingencyEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.InvoiceID == invoiceID && ev.ResolvedAt == nil {
			cp := ev
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memContingencyRepo) Resolve(_ context.Context, invoiceID, outcome string, resolvedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ev := range r.events {
		if ev.InvoiceID == invoiceID && ev.ResolvedAt == nil {
			t := resolvedAt
			ev.ResolvedAt = &t
			ev.Outcome = outcome
			r.events[id] = ev
		}
	}
	return nil
}

func (r *memContingencyRepo) ListOpen(_ context.Context, limit int) ([]*entity.ContingencyEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ContingencyEvent
	for _, ev := range r.events {
		if ev.ResolvedAt == nil {
			cp := ev
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memContingencyRepo) CountOpen(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, ev := range r.events {
		if ev.ResolvedAt == nil {
			n++
		}
	}
	return n, nil
}

// eventos devuelve todos los eventos del comprobante, abiertos y cerrados.
func (r *memContingencyRepo) eventos(invoiceID string) []entity.ContingencyEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.ContingencyEvent
	for _, ev := range r.events {
		if ev.InvoiceID == invoiceID {
			out = append(out, ev)
		}
	}
	return out
}

func pagina[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}

// ──────────────────────────────────────────────────────────────────────────────
// Transacción, encolado y puertos DGII
// ──────────────────────────────────────────────────────────────────────────────

// fakeTx serializa el perímetro completo con un mutex, emulando el bloqueo
// SELECT ... FOR UPDATE de la transacción real. No emula rollback: la
// atomicidad de la transacción no es lo que prueban estos tests.
type fakeTx struct {
	mu     sync.Mutex
	ranges repository.SequenceRangeRepository
	invs   repository.InvoiceRepository
	conts  repository.ContingencyRepository
}

func (t *fakeTx) RunBilling(ctx context.Context, fn func(
	rangeRepo repository.SequenceRangeRepository,
	invoiceRepo repository.InvoiceRepository,
	contingencyRepo repository.ContingencyRepository,
) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t.ranges, t.invs, t.conts)
}

// conflictingRanges envuelve el repo de rangos y fuerza ErrConflictoAsignacion
// en los primeros fallos UpdateCurrent, como si otra transacción hubiera
// avanzado el contador entre el bloqueo y el update.
type conflictingRanges struct {
	repository.SequenceRangeRepository
	fallos int32
	calls  int32
}

func (c *conflictingRanges) UpdateCurrent(ctx context.Context, id string, prev, next int64) error {
	if atomic.AddInt32(&c.calls, 1) <= c.fallos {
		return domain.ErrConflictoAsignacion
	}
	return c.SequenceRangeRepository.UpdateCurrent(ctx, id, prev, next)
}

type fakeEnqueuer struct {
	mu      sync.Mutex
	submits []string
	polls   []string
	err     error
}

func (f *fakeEnqueuer) EnqueueSubmit(_ context.Context, invoiceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.submits = append(f.submits, invoiceID)
	return nil
}

func (f *fakeEnqueuer) EnqueuePoll(_ context.Context, invoiceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.polls = append(f.polls, invoiceID)
	return nil
}

func (f *fakeEnqueuer) encolados() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submits...)
}

// fakeSubmitter devuelve resultados programados y registra lo que recibió.
type fakeSubmitter struct {
	submitRes *infradgii.ReceptionResult
	submitErr error
	statusRes *infradgii.StatusResult
	statusErr error

	submits  int
	queries  int
	lastXML  []byte
	lastFile string
	lastEnv  string
}

func (f *fakeSubmitter) Submit(_ context.Context, signedXML []byte, filename, env string) (*infradgii.ReceptionResult, error) {
	f.submits++
	f.lastXML = signedXML
	f.lastFile = filename
	f.lastEnv = env
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitRes, nil
}

func (f *fakeSubmitter) QueryStatus(_ context.Context, trackID, env string) (*infradgii.StatusResult, error) {
	f.queries++
	f.lastEnv = env
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.statusRes, nil
}

// fakeSigner estampa una firma de mentira con código de seguridad fijo.
type fakeSigner struct{ err error }

func (f *fakeSigner) Sign(xmlBytes []byte, _ tls.Certificate) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return append(xmlBytes, []byte("<!--Signature-->")...), "A1B2C3", nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Constructores de fixtures
// ──────────────────────────────────────────────────────────────────────────────

func empresaActiva() *entity.Company {
	now := time.Now()
	return &entity.Company{
		ID:        empresaID,
		Name:      "Comercial Rodríguez SRL",
		RNC:       emisorRNC,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// rangoActivo construye un rango tipo 31 vigente con Current en el inicio.
func rangoActivo(id string, from, to int64) *entity.SequenceRange {
	now := time.Now()
	return &entity.SequenceRange{
		ID:         id,
		CompanyID:  empresaID,
		Tipo:       dgii.TipoCreditoFiscal,
		AuthNumber: "AUT-" + id,
		RangeFrom:  from,
		RangeTo:    to,
		Current:    from,
		DateFrom:   now.AddDate(0, -1, 0),
		DateTo:     now.AddDate(1, 0, 0),
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// solicitudTipo31 arma un request de crédito fiscal válido: una línea de
// 1000.00 con ITBIS 18%, totales derivados por la validación.
func solicitudTipo31() dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		ECFType:    int(dgii.TipoCreditoFiscal),
		BuyerName:  "Distribuidora del Este SRL",
		BuyerTaxID: compradorRNC,
		Lines: []dto.InvoiceLineRequest{{
			Description: "Servicio de consultoría",
			Quantity:    d("1"),
			UnitPrice:   d("1000"),
			TaxRate:     d("18"),
		}},
	}
}

// comprobanteGuardado construye un comprobante ya emitido (con e-NCF) en el
// estado dado, junto con su línea.
func comprobanteGuardado(id string, estado entity.ECFStatus) (*entity.Invoice, []*entity.InvoiceLine) {
	now := time.Now()
	inv := &entity.Invoice{
		ID:           id,
		CompanyID:    empresaID,
		Tipo:         dgii.TipoCreditoFiscal,
		ENCF:         "E310000000001",
		Secuencia:    1,
		RangeID:      "rango-1",
		FechaEmision: now,
		BuyerName:    "Distribuidora del Este SRL",
		BuyerTaxID:   compradorRNC,
		Currency:     "DOP",
		ExchangeRate: d("1"),
		NetTotal:     d("1000.00"),
		TaxTotal:     d("180.00"),
		GrandTotal:   d("1180.00"),
		Status:       estado,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	lines := []*entity.InvoiceLine{{
		ID:          id + "-l1",
		InvoiceID:   id,
		LineNumber:  1,
		Description: "Servicio de consultoría",
		Quantity:    d("1"),
		UnitPrice:   d("1000"),
		TaxRate:     d("18"),
		NetAmount:   d("1000.00"),
		TaxAmount:   d("180.00"),
	}}
	return inv, lines
}

package dgii_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// TestRedondear2_MedioHaciaArriba verifica el redondeo half-up exigido por el
// formato e-CF: el medio exacto sube.
func TestRedondear2_MedioHaciaArriba(t *testing.T) {
	casos := []struct{ entrada, esperado string }{
		{"30.015", "30.02"},
		{"2.675", "2.68"},
		{"5.4027", "5.40"},
		{"0.005", "0.01"},
		{"1.004", "1.00"},
	}
	for _, c := range casos {
		assert.True(t, dgii.Redondear2(d(c.entrada)).Equal(d(c.esperado)),
			"Redondear2(%s) debe dar %s, dio %s", c.entrada, c.esperado, dgii.Redondear2(d(c.entrada)))
	}
}

func TestRedondear4_PrecioUnitario(t *testing.T) {
	assert.True(t, dgii.Redondear4(d("10.00549")).Equal(d("10.0055")))
	assert.True(t, dgii.Redondear4(d("58.3000")).Equal(d("58.3")))
}

func TestDentroDeTolerancia_LimiteExacto(t *testing.T) {
	tol := dgii.ToleranciaLinea
	assert.True(t, dgii.DentroDeTolerancia(d("30.02"), d("31.02"), tol), "1.00 de diferencia está justo dentro de tolerancia")
	assert.True(t, dgii.DentroDeTolerancia(d("30.02"), d("30.02"), tol))
	assert.False(t, dgii.DentroDeTolerancia(d("30.02"), d("31.03"), tol), "1.01 de diferencia excede la tolerancia por línea")
}

func TestToleranciaTotales_EscalaPorLineas(t *testing.T) {
	assert.True(t, dgii.ToleranciaTotales(3).Equal(d("3")))
	assert.True(t, dgii.ToleranciaTotales(1).Equal(d("1")))
	assert.True(t, dgii.ToleranciaTotales(0).Equal(d("1")), "mínimo una línea de tolerancia")
}

// TestExcedeTechoConsumo_Frontera cubre la frontera exacta del techo de la
// factura de consumo sin comprador identificado: 250,000.00 pasa y un centavo
// más ya exige identificación.
func TestExcedeTechoConsumo_Frontera(t *testing.T) {
	assert.False(t, dgii.ExcedeTechoConsumo(d("250000.00")))
	assert.True(t, dgii.ExcedeTechoConsumo(d("250000.01")))
}

func TestReglas_CatalogoTipos(t *testing.T) {
	r, ok := dgii.Reglas(dgii.TipoNotaCredito)
	assert.True(t, ok)
	assert.True(t, r.EsModificacion, "la nota de crédito referencia un e-NCF modificado")
	assert.True(t, r.RequiereComprador)

	r, ok = dgii.Reglas(dgii.TipoConsumo)
	assert.True(t, ok)
	assert.False(t, r.RequiereComprador, "consumo admite consumidor final")
	assert.True(t, r.AplicaTecho)

	_, ok = dgii.Reglas(dgii.TipoECF(99))
	assert.False(t, ok)
}

package dgii_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

func TestFormatENCF_SerieTipoYSecuencia(t *testing.T) {
	casos := []struct {
		tipo      dgii.TipoECF
		secuencia int64
		esperado  string
	}{
		{dgii.TipoCreditoFiscal, 1, "E310000000001"},
		{dgii.TipoConsumo, 12345, "E320000012345"},
		{dgii.TipoNotaCredito, 9999999999, "E349999999999"},
		{dgii.TipoPagosExterior, 42, "E470000000042"},
	}
	for _, c := range casos {
		encf, err := dgii.FormatENCF(c.tipo, c.secuencia)
		require.NoError(t, err)
		assert.Equal(t, c.esperado, encf)
		assert.Len(t, encf, dgii.ENCFLength)
	}
}

func TestFormatENCF_TipoDesconocido(t *testing.T) {
	_, err := dgii.FormatENCF(dgii.TipoECF(30), 1)
	assert.Error(t, err, "el tipo 30 no existe en el catálogo e-CF")
}

func TestFormatENCF_SecuenciaFueraDeRango(t *testing.T) {
	_, err := dgii.FormatENCF(dgii.TipoCreditoFiscal, 0)
	assert.Error(t, err, "la secuencia inicia en 1")

	_, err = dgii.FormatENCF(dgii.TipoCreditoFiscal, 10000000000)
	assert.Error(t, err, "la secuencia no cabe en 10 dígitos")
}

func TestParseENCF_DescomponeTipoYSecuencia(t *testing.T) {
	tipo, sec, err := dgii.ParseENCF("E310000000001")
	require.NoError(t, err)
	assert.Equal(t, dgii.TipoCreditoFiscal, tipo)
	assert.Equal(t, int64(1), sec)

	// minúsculas y espacios se normalizan
	tipo, sec, err = dgii.ParseENCF("  e320000012345 ")
	require.NoError(t, err)
	assert.Equal(t, dgii.TipoConsumo, tipo)
	assert.Equal(t, int64(12345), sec)
}

func TestParseENCF_FormatosInvalidos(t *testing.T) {
	invalidos := []string{
		"B0100000001",   // serie B (NCF tradicional, no electrónico)
		"E3100000001",   // muy corto
		"E31000000000012", // muy largo
		"E350000000001", // tipo 35 no existe
		"E310000000000", // secuencia 0
		"",
	}
	for _, encf := range invalidos {
		assert.Error(t, dgii.ValidateENCF(encf), "e-NCF %q debe rechazarse", encf)
	}
}

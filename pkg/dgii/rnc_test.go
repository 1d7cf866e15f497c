package dgii_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vectores de dígito verificador RNC (módulo 11, pesos 7 9 8 6 5 4 3 2):
//
//	base 10102312 → suma 44, resto 0  → DV 2 → RNC 101023122
//	base 13000000 → suma 34, resto 1  → DV 1 → RNC 130000001
//	base 40123456 → suma 106, resto 7 → DV 4 → RNC 401234564
//
// Vector cédula (Luhn sobre los 10 primeros dígitos):
//
//	0011391820 → suma 25 → DV 5 → cédula 00113918205
// ──────────────────────────────────────────────────────────────────────────────

func TestValidateRNC_DigitosVerificadoresCorrectos(t *testing.T) {
	validos := []string{
		"101023122",
		"130000001",
		"401234564",
		"1-01-02312-2", // con guiones
	}
	for _, rnc := range validos {
		assert.NoError(t, dgii.ValidateRNC(rnc), "RNC %s debe ser válido", rnc)
	}
}

func TestValidateRNC_DigitoVerificadorIncorrecto(t *testing.T) {
	err := dgii.ValidateRNC("101023121")
	assert.Error(t, err, "un RNC con DV alterado debe rechazarse")
}

func TestValidateRNC_LargoIncorrecto(t *testing.T) {
	assert.Error(t, dgii.ValidateRNC("12345678"), "8 dígitos no es un RNC")
	assert.Error(t, dgii.ValidateRNC("1234567890"), "10 dígitos no es un RNC")
	assert.Error(t, dgii.ValidateRNC(""), "vacío no es un RNC")
}

func TestComputeRNCCheckDigit_CasosDeResto(t *testing.T) {
	// resto 0 → DV 2
	dv, err := dgii.ComputeRNCCheckDigit("10102312")
	require.NoError(t, err)
	assert.Equal(t, byte('2'), dv)

	// resto 1 → DV 1
	dv, err = dgii.ComputeRNCCheckDigit("13000000")
	require.NoError(t, err)
	assert.Equal(t, byte('1'), dv)

	// resto general → DV = 11 - resto
	dv, err = dgii.ComputeRNCCheckDigit("40123456")
	require.NoError(t, err)
	assert.Equal(t, byte('4'), dv)
}

func TestValidateCedula_VectorLuhn(t *testing.T) {
	assert.NoError(t, dgii.ValidateCedula("00113918205"))
	assert.NoError(t, dgii.ValidateCedula("001-1391820-5"), "cédula con guiones debe aceptarse")
}

func TestValidateCedula_DigitoVerificadorIncorrecto(t *testing.T) {
	assert.Error(t, dgii.ValidateCedula("00113918204"))
}

func TestValidateCedula_LargoIncorrecto(t *testing.T) {
	assert.Error(t, dgii.ValidateCedula("0011391820"), "10 dígitos no es una cédula")
	assert.Error(t, dgii.ValidateCedula("001139182055"), "12 dígitos no es una cédula")
}

// TestValidarIdentificacion_DespachaPorLargo verifica que 9 dígitos se validan
// como RNC, 11 como cédula y cualquier otro largo se rechaza de plano.
func TestValidarIdentificacion_DespachaPorLargo(t *testing.T) {
	assert.NoError(t, dgii.ValidarIdentificacion("101023122"))
	assert.NoError(t, dgii.ValidarIdentificacion("00113918205"))
	assert.Error(t, dgii.ValidarIdentificacion("1234567890"))
	assert.Error(t, dgii.ValidarIdentificacion("abc"))
}

package dgii

import (
	"fmt"
	"unicode"
)

// pesos para el cálculo del dígito verificador del RNC (módulo 11, DGII).
// Se aplican a los 8 primeros dígitos del RNC, de izquierda a derecha.
var rncWeights = [8]int{7, 9, 8, 6, 5, 4, 3, 2}

// ValidateRNC valida que el RNC (con o sin guiones) tenga 9 dígitos y un
// dígito verificador correcto según el algoritmo módulo 11 de la DGII.
// taxID puede ser "1-01-02312-2" o "101023122".
func ValidateRNC(taxID string) error {
	digits := extractDigits(taxID)
	if len(digits) != 9 {
		return fmt.Errorf("dgii: RNC debe tener 9 dígitos, se encontraron %d", len(digits))
	}
	expected, err := ComputeRNCCheckDigit(string(digits[:8]))
	if err != nil {
		return err
	}
	if digits[8] != expected {
		return fmt.Errorf("dgii: dígito verificador del RNC inválido: esperado %c, recibido %c", expected, digits[8])
	}
	return nil
}

// ComputeRNCCheckDigit calcula el dígito verificador para los 8 primeros
// dígitos del RNC. Útil para completar el RNC antes de registrar un emisor.
func ComputeRNCCheckDigit(base string) (byte, error) {
	digits := extractDigits(base)
	if len(digits) < 8 {
		return 0, fmt.Errorf("dgii: se requieren al menos 8 dígitos para calcular el dígito verificador, se encontraron %d", len(digits))
	}
	var sum int
	for i, d := range digits[:8] {
		sum += int(d-'0') * rncWeights[i]
	}
	rest := sum % 11
	switch rest {
	case 0:
		return '2', nil
	case 1:
		return '1', nil
	default:
		return byte('0' + (11 - rest)), nil
	}
}

// ValidateCedula valida que la cédula dominicana (con o sin guiones) tenga
// 11 dígitos y un dígito verificador correcto (algoritmo de Luhn sobre los
// 10 primeros dígitos).
func ValidateCedula(id string) error {
	digits := extractDigits(id)
	if len(digits) != 11 {
		return fmt.Errorf("dgii: cédula debe tener 11 dígitos, se encontraron %d", len(digits))
	}
	var sum int
	for i, d := range digits[:10] {
		v := int(d - '0')
		if i%2 == 1 {
			v *= 2
			if v > 9 {
				v -= 9
			}
		}
		sum += v
	}
	expected := byte('0' + (10-sum%10)%10)
	if digits[10] != expected {
		return fmt.Errorf("dgii: dígito verificador de la cédula inválido: esperado %c, recibido %c", expected, digits[10])
	}
	return nil
}

// ValidarIdentificacion valida un RNC (9 dígitos) o una cédula (11 dígitos)
// según el largo del documento. Cualquier otro largo es inválido.
func ValidarIdentificacion(id string) error {
	digits := extractDigits(id)
	switch len(digits) {
	case 9:
		return ValidateRNC(id)
	case 11:
		return ValidateCedula(id)
	default:
		return fmt.Errorf("dgii: identificación debe ser RNC (9 dígitos) o cédula (11 dígitos), se encontraron %d dígitos", len(digits))
	}
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}

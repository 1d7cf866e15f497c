package dgii

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ENCFLength es el largo fijo del e-NCF: serie E + 2 dígitos de tipo + 10 de secuencia.
const ENCFLength = 13

var encfPattern = regexp.MustCompile(`^E(\d{2})(\d{10})$`)

// FormatENCF construye el e-NCF a partir del tipo y el número de secuencia
// asignado: serie "E" + tipo en dos dígitos + secuencia en 10 dígitos con
// ceros a la izquierda. Ej.: tipo 31, secuencia 1 → "E310000000001".
func FormatENCF(tipo TipoECF, secuencia int64) (string, error) {
	if !EsTipoValido(tipo) {
		return "", fmt.Errorf("dgii: tipo de e-CF desconocido: %d", tipo)
	}
	if secuencia < 1 || secuencia > 9999999999 {
		return "", fmt.Errorf("dgii: secuencia fuera de rango para e-NCF: %d", secuencia)
	}
	return fmt.Sprintf("E%02d%010d", tipo, secuencia), nil
}

// ParseENCF descompone un e-NCF en tipo y secuencia, validando formato y tipo.
func ParseENCF(encf string) (TipoECF, int64, error) {
	encf = strings.ToUpper(strings.TrimSpace(encf))
	m := encfPattern.FindStringSubmatch(encf)
	if m == nil {
		return 0, 0, fmt.Errorf("dgii: e-NCF con formato inválido: %q (se espera E + 12 dígitos)", encf)
	}
	t, _ := strconv.Atoi(m[1])
	tipo := TipoECF(t)
	if !EsTipoValido(tipo) {
		return 0, 0, fmt.Errorf("dgii: e-NCF con tipo desconocido: %q", encf)
	}
	sec, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil || sec < 1 {
		return 0, 0, fmt.Errorf("dgii: e-NCF con secuencia inválida: %q", encf)
	}
	return tipo, sec, nil
}

// ValidateENCF valida formato y tipo de un e-NCF sin descomponerlo.
func ValidateENCF(encf string) error {
	_, _, err := ParseENCF(encf)
	return err
}

// seed_padron genera un script SQL para poblar el padrón de contribuyentes
// DGII a partir del archivo oficial DGII_RNC.TXT (texto plano ISO-8859-1,
// campos separados por "|").
//
// Uso: go run ./cmd/seed_padron [ruta/DGII_RNC.TXT]
// Por defecto busca DGII_RNC.TXT en el directorio actual.
// Escribe: internal/infrastructure/postgres/migrations/002_seed_padron.sql
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// contribuyente es una fila del padrón: RNC (o cédula-RNC), razón social,
// nombre comercial, actividad económica y estado ante la DGII.
type contribuyente struct {
	rnc       string
	nombre    string
	comercial string
	actividad string
	estado    string
}

// batchSize filas por INSERT; el padrón completo supera el millón de filas.
const batchSize = 500

func main() {
	txtPath := "DGII_RNC.TXT"
	if len(os.Args) > 1 {
		txtPath = os.Args[1]
	}
	f, err := os.Open(txtPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir padrón: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	// La DGII publica el padrón en ISO-8859-1 (tildes y Ñ en razón social).
	sc := bufio.NewScanner(transform.NewReader(f, charmap.ISO8859_1.NewDecoder()))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rows []contribuyente
	var descartadas int
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		c, ok := parseLinea(line)
		if !ok {
			descartadas++
			continue
		}
		rows = append(rows, c)
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Leer padrón: %v\n", err)
		os.Exit(1)
	}

	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "internal", "infrastructure", "postgres", "migrations", "002_seed_padron.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	defer w.Flush()

	w.WriteString("-- Padrón de contribuyentes DGII (República Dominicana)\n")
	w.WriteString("-- Generado desde DGII_RNC.TXT\n\n")

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		w.WriteString("INSERT INTO dgii_padron (rnc, name, trade_name, activity, status) VALUES\n")
		for i, c := range rows[start:end] {
			sep := ","
			if start+i == end-1 {
				sep = ""
			}
			fmt.Fprintf(w, "  ('%s', '%s', '%s', '%s', '%s')%s\n",
				c.rnc, escapeSQL(c.nombre), escapeSQL(c.comercial),
				escapeSQL(c.actividad), c.estado, sep)
		}
		w.WriteString("ON CONFLICT (rnc) DO UPDATE SET name = EXCLUDED.name, trade_name = EXCLUDED.trade_name, activity = EXCLUDED.activity, status = EXCLUDED.status;\n\n")
	}

	fmt.Printf("Generado %s: %d contribuyentes (%d líneas descartadas)\n", outPath, len(rows), descartadas)
}

// parseLinea interpreta una línea del padrón. Diseño del archivo oficial:
// RNC|RAZÓN SOCIAL|NOMBRE COMERCIAL|ACTIVIDAD|...|FECHA|RÉGIMEN|ESTADO.
// Solo se aceptan RNC de 9 dígitos o cédulas-RNC de 11.
func parseLinea(line string) (contribuyente, bool) {
	fields := strings.Split(line, "|")
	if len(fields) < 2 {
		return contribuyente{}, false
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	rnc := fields[0]
	if !esNumerico(rnc) || (len(rnc) != 9 && len(rnc) != 11) {
		return contribuyente{}, false
	}
	c := contribuyente{rnc: rnc, nombre: fields[1], estado: "ACTIVO"}
	if len(fields) > 2 {
		c.comercial = fields[2]
	}
	if len(fields) > 3 {
		c.actividad = fields[3]
	}
	// El estado viaja en la penúltima o última columna según la versión del
	// archivo; se toma la primera que coincida con el catálogo.
	for i := len(fields) - 1; i > 3; i-- {
		switch strings.ToUpper(fields[i]) {
		case "ACTIVO", "SUSPENDIDO", "DADO DE BAJA", "CESE TEMPORAL":
			c.estado = strings.ToUpper(fields[i])
			return c, true
		}
	}
	return c, true
}

func esNumerico(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

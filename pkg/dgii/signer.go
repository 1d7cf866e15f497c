// Package dgii: interfaz para firma digital de documentos XML (XMLDSig
// enveloped, requerido por los servicios e-CF de la DGII).

package dgii

import "crypto/tls"

// Signer firma un XML e-CF y devuelve el XML con la firma inyectada como
// último hijo del elemento raíz ECF.
type Signer interface {
	// Sign toma el XML del comprobante (sin firma) y el certificado con llave
	// privada, y retorna el XML con el nodo Signature más el código de
	// seguridad derivado de la firma (primeros 6 caracteres del hash).
	Sign(xmlBytes []byte, cert tls.Certificate) (signed []byte, securityCode string, err error)
}

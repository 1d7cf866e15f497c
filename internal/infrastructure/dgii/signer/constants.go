// Constantes para la firma XMLDSig envuelta de documentos e-CF DGII.

package signer

// Namespaces y algoritmos XMLDSig.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// SecurityCodeLength longitud del código de seguridad que viaja en el QR de
// la representación impresa (primeros caracteres del hash de la firma).
const SecurityCodeLength = 6

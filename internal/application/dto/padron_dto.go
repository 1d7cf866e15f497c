package dto

// PadronEntryResponse contribuyente del padrón DGII.
type PadronEntryResponse struct {
	RNC       string `json:"rnc"`
	Name      string `json:"name"`
	TradeName string `json:"trade_name,omitempty"`
	Activity  string `json:"activity,omitempty"`
	Status    string `json:"status"`
	Active    bool   `json:"active"`
}

// PadronSearchResponse resultado de búsqueda en el padrón.
type PadronSearchResponse struct {
	Items []PadronEntryResponse `json:"items"`
	Query string                `json:"query"`
}

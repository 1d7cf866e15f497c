package dto

import "time"

// CreateCompanyRequest entrada para crear una empresa emisora.
type CreateCompanyRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	TradeName   string `json:"trade_name" validate:"omitempty,max=200"`
	RNC         string `json:"rnc" validate:"required,min=9,max=11"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Email       string `json:"email" validate:"omitempty,email"`
	Environment string `json:"environment" validate:"omitempty,oneof=TesteCF CerteCF eCF"`
}

// UpdateCompanyRequest entrada para actualizar una empresa (campos opcionales).
type UpdateCompanyRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	TradeName   *string `json:"trade_name" validate:"omitempty,max=200"`
	Address     *string `json:"address"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Environment *string `json:"environment" validate:"omitempty,oneof=TesteCF CerteCF eCF"`
	Status      *string `json:"status" validate:"omitempty,oneof=active suspended inactive"`
}

// CompanyResponse salida de una empresa emisora.
type CompanyResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	TradeName   string    `json:"trade_name,omitempty"`
	RNC         string    `json:"rnc"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Environment string    `json:"environment,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CompanyListResponse lista paginada de empresas.
type CompanyListResponse struct {
	Items []CompanyResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

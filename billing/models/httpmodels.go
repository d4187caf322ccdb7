package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CreateBillLineRequest is one line of a create bill request
type CreateBillLineRequest struct {
	Concept    string          `json:"concept"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitAmount decimal.Decimal `json:"unitAmount"`
}

// CreateBillRequest represents the request to create a new bill
type CreateBillRequest struct {
	BillNumber   string                  `json:"billNumber"`
	IssuedAt     string                  `json:"issuedAt"`
	CustomerName string                  `json:"customerName"`
	Currency     string                  `json:"currency"`
	Tax          decimal.Decimal         `json:"tax"`
	Lines        []CreateBillLineRequest `json:"lines"`
}

// CreateBillResponse represents the response after creating a bill
type CreateBillResponse struct {
	ID         int64       `json:"id"`
	BillNumber string      `json:"billNumber"`
	IssuedAt   string      `json:"issuedAt"`
	Subtotal   json.Number `json:"subtotal"`
	Tax        json.Number `json:"tax"`
	Total      json.Number `json:"total"`
	Currency   string      `json:"currency"`
}

// BillListItem is one element of the list bills response
type BillListItem struct {
	ID         int64       `json:"id"`
	BillNumber string      `json:"billNumber"`
	IssuedAt   string      `json:"issuedAt"`
	Total      json.Number `json:"total"`
	Currency   string      `json:"currency"`
}

// ProblemResponse is the error body of every failed request
type ProblemResponse struct {
	Type   string           `json:"type"`
	Title  string           `json:"title"`
	Status int              `json:"status"`
	Errors *ValidationError `json:"errors,omitempty"`
}

// HealthResponse reports the service and broker state
type HealthResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Broker  string `json:"broker"`
}

func (r *CreateBillRequest) Input() BillInput {
	lines := make([]BillLineInput, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, BillLineInput{
			Concept:    l.Concept,
			Quantity:   l.Quantity,
			UnitAmount: l.UnitAmount,
		})
	}
	return BillInput{
		BillNumber:   r.BillNumber,
		IssuedAt:     r.IssuedAt,
		CustomerName: r.CustomerName,
		Currency:     r.Currency,
		Tax:          r.Tax,
		Lines:        lines,
	}
}

func NewCreateBillResponse(b *Bill) *CreateBillResponse {
	return &CreateBillResponse{
		ID:         b.ID,
		BillNumber: b.BillNumber,
		IssuedAt:   b.IssuedAt.Format(DateLayout),
		Subtotal:   Amount(b.Subtotal),
		Tax:        Amount(b.Tax),
		Total:      Amount(b.Total),
		Currency:   b.Currency,
	}
}

func NewBillListItem(s *BillSummary) BillListItem {
	return BillListItem{
		ID:         s.ID,
		BillNumber: s.BillNumber,
		IssuedAt:   s.IssuedAt.Format(DateLayout),
		Total:      Amount(s.Total),
		Currency:   s.Currency,
	}
}

// Amount renders a monetary value as a JSON number with two decimals
func Amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(AmountPlaces))
}

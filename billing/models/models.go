package models

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	// DateLayout is the wire format of issue dates
	DateLayout = "2006-01-02"

	// AmountPlaces is the scale of every monetary amount
	AmountPlaces = 2

	// MeasurePlaces is the stored scale of quantities and unit amounts
	MeasurePlaces = 4
)

// BillLine is one billable item within a bill
type BillLine struct {
	LineNo     int             `json:"lineNo"`
	Concept    string          `json:"concept"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitAmount decimal.Decimal `json:"unitAmount"`
	LineAmount decimal.Decimal `json:"lineAmount"`
}

// Bill is the invoice aggregate. ID is zero until the bill is persisted.
type Bill struct {
	ID           int64           `json:"id"`
	BillNumber   string          `json:"billNumber"`
	IssuedAt     time.Time       `json:"issuedAt"`
	CustomerName string          `json:"customerName"`
	Currency     string          `json:"currency"`
	Tax          decimal.Decimal `json:"tax"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Total        decimal.Decimal `json:"total"`
	Lines        []*BillLine     `json:"lines"`
}

// BillSummary is the read projection used by the list endpoint
type BillSummary struct {
	ID         int64
	BillNumber string
	IssuedAt   time.Time
	Total      decimal.Decimal
	Currency   string
}

// BillLineInput is the raw, not yet normalized, line data
type BillLineInput struct {
	Concept    string
	Quantity   decimal.Decimal
	UnitAmount decimal.Decimal
}

// BillInput is the raw, not yet normalized, bill data
type BillInput struct {
	BillNumber   string
	IssuedAt     string
	CustomerName string
	Currency     string
	Tax          decimal.Decimal
	Lines        []BillLineInput
}

func (b *Bill) IsPersisted() bool {
	return b.ID > 0
}

// IsKnownCurrency reports whether the code is an ISO-4217 currency
func (b *Bill) IsKnownCurrency() bool {
	return money.GetCurrency(b.Currency) != nil
}

// NewBillLine validates a single line and computes its amount.
// Every violated rule is reported, keyed by "lines.<field>".
// Rules apply to the values as received. Quantity and unit amount are then kept at
// MeasurePlaces and the line amount is their product rounded half away from zero to
// AmountPlaces, so 3 x 0.005 is 0.02.
func NewBillLine(lineNo int, in BillLineInput) (*BillLine, *ValidationError) {
	fields := lineFields{
		LineNo:     lineNo,
		Concept:    strings.TrimSpace(in.Concept),
		Quantity:   in.Quantity,
		UnitAmount: in.UnitAmount,
	}

	if verr := validateFields(fields, "lines."); verr.HasErrors() {
		return nil, verr
	}

	quantity := fields.Quantity.Round(MeasurePlaces)
	unitAmount := fields.UnitAmount.Round(MeasurePlaces)
	return &BillLine{
		LineNo:     fields.LineNo,
		Concept:    fields.Concept,
		Quantity:   quantity,
		UnitAmount: unitAmount,
		LineAmount: quantity.Mul(unitAmount).Round(AmountPlaces),
	}, nil
}

// NewBill normalizes and validates a whole bill, then derives its lines and totals.
// Bill-level and line-level violations are returned together in one ValidationError.
func NewBill(in BillInput) (*Bill, error) {
	fields := billFields{
		BillNumber:   strings.TrimSpace(in.BillNumber),
		IssuedAt:     strings.TrimSpace(in.IssuedAt),
		CustomerName: strings.TrimSpace(in.CustomerName),
		Currency:     strings.ToUpper(strings.TrimSpace(in.Currency)),
		Tax:          in.Tax,
		Lines:        len(in.Lines),
	}

	verr := validateFields(fields, "")

	lines := make([]*BillLine, 0, len(in.Lines))
	for i, lineIn := range in.Lines {
		line, lineErr := NewBillLine(i+1, lineIn)
		if lineErr != nil {
			verr.Merge(lineErr)
			continue
		}
		lines = append(lines, line)
	}

	if verr.HasErrors() {
		return nil, verr
	}

	issuedAt, err := time.Parse(DateLayout, fields.IssuedAt)
	if err != nil {
		// unreachable once the datetime rule passed
		verr.Add("issuedAt", messages["issuedAt.datetime"])
		return nil, verr
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineAmount)
	}
	subtotal = subtotal.Round(AmountPlaces)
	tax := fields.Tax.Round(AmountPlaces)

	return &Bill{
		BillNumber:   fields.BillNumber,
		IssuedAt:     issuedAt,
		CustomerName: fields.CustomerName,
		Currency:     fields.Currency,
		Tax:          tax,
		Subtotal:     subtotal,
		Total:        subtotal.Add(tax).Round(AmountPlaces),
		Lines:        lines,
	}, nil
}

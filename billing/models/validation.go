package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// billFields holds the trimmed, unrounded bill header. Field order is the order errors are reported in.
type billFields struct {
	BillNumber   string          `json:"billNumber" validate:"required,max=50"`
	CustomerName string          `json:"customerName" validate:"required,max=200"`
	Currency     string          `json:"currency" validate:"len=3,alpha"`
	Tax          decimal.Decimal `json:"tax" validate:"gte=0"`
	IssuedAt     string          `json:"issuedAt" validate:"required,datetime=2006-01-02"`
	Lines        int             `json:"lines" validate:"gt=0"`
}

type lineFields struct {
	LineNo     int             `json:"lineNo" validate:"gt=0"`
	Concept    string          `json:"concept" validate:"required,max=200"`
	Quantity   decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitAmount decimal.Decimal `json:"unitAmount" validate:"gte=0"`
}

// messages maps "<field>.<rule>" to the message reported to the caller
var messages = map[string]string{
	"billNumber.required":   "Bill number is required.",
	"billNumber.max":        "Bill number max length is 50.",
	"customerName.required": "Customer name is required.",
	"customerName.max":      "Customer name max length is 200.",
	"currency.len":          "Currency must be a 3-letter ISO code.",
	"currency.alpha":        "Currency must be a 3-letter ISO code.",
	"tax.gte":               "Tax cannot be negative.",
	"issuedAt.required":     "Issued date is required.",
	"issuedAt.datetime":     "Issued date must use format YYYY-MM-DD.",
	"lines.gt":              "At least one line is required.",
	"lineNo.gt":             "Line number must be greater than zero.",
	"concept.required":      "Line concept is required.",
	"concept.max":           "Line concept max length is 200.",
	"quantity.gt":           "Line quantity must be greater than zero.",
	"unitAmount.gte":        "Line unit amount cannot be negative.",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// amounts are compared by sign only
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validateFields runs the struct rules and collects every violation under prefix+field
func validateFields(s any, prefix string) *ValidationError {
	verr := NewValidationError()

	err := validate.Struct(s)
	if err == nil {
		return verr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("request", err.Error())
		return verr
	}

	for _, fe := range fieldErrs {
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s is invalid.", fe.Field())
		}
		verr.Add(prefix+fe.Field(), msg)
	}
	return verr
}

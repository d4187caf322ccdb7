package billing

import (
	"encoding/json"
	"io"

	"encore.app/billing/models"
	"encore.dev/rlog"
)

// DecodeCreateBillRequest reads the request body. A body that is not a JSON object
// of the expected shape is reported as a validation failure on the "request" field.
func DecodeCreateBillRequest(body io.Reader) (*models.CreateBillRequest, error) {
	log := rlog.With("module", "billing_validation")

	var req models.CreateBillRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		log.Warn("validation failed: invalid JSON payload", "error", err)
		verr := models.NewValidationError()
		verr.Add("request", models.MessageInvalidJSON)
		return nil, verr
	}

	log.Debug("create bill request decoded",
		"bill_number", req.BillNumber,
		"lines_count", len(req.Lines))
	return &req, nil
}

package billing

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"encore.app/billing/core"
	"encore.app/billing/core/mocks"
	"encore.app/billing/ext_services"
	extMocks "encore.app/billing/ext_services/mocks"
	"encore.app/billing/models"
	"encore.app/billing/repository"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBody = `{
	"billNumber": "B-77",
	"issuedAt": "2024-02-29",
	"customerName": "Initech",
	"currency": "usd",
	"tax": 1.5,
	"lines": [{"concept": "Seats", "quantity": 3, "unitAmount": 0.005}]
}`

func postBills(h *Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.CreateBill(rec, httptest.NewRequest(http.MethodPost, "/bills", strings.NewReader(body)))
	return rec
}

func storedBill() *models.Bill {
	return &models.Bill{
		ID:         9,
		BillNumber: "B-77",
		IssuedAt:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		Currency:   "USD",
		Subtotal:   decimal.RequireFromString("0.02"),
		Tax:        decimal.RequireFromString("1.5"),
		Total:      decimal.RequireFromString("1.52"),
	}
}

func TestCreateBill(t *testing.T) {
	t.Run("when_body_is_not_json", func(t *testing.T) {
		t.Run("should_return_validation_problem", func(t *testing.T) {
			handler := &Handler{service: mocks.NewMockService(gomock.NewController(t))}

			rec := postBills(handler, `{"billNumber": `)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, `{
				"type": "about:blank",
				"title": "Validation failed",
				"status": 400,
				"errors": {"request": ["Invalid JSON payload."]}
			}`, rec.Body.String())
		})
	})

	t.Run("when_request_is_valid", func(t *testing.T) {
		t.Run("should_pass_decoded_request_to_service", func(t *testing.T) {
			mockSvc := mocks.NewMockService(gomock.NewController(t))
			handler := &Handler{service: mockSvc}
			mockSvc.EXPECT().CreateBill(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ interface{}, req *models.CreateBillRequest) (*models.Bill, error) {
					assert.Equal(t, "B-77", req.BillNumber)
					assert.Equal(t, "usd", req.Currency)
					require.Len(t, req.Lines, 1)
					assert.True(t, decimal.RequireFromString("0.005").Equal(req.Lines[0].UnitAmount))
					return storedBill(), nil
				})

			rec := postBills(handler, validBody)

			assert.Equal(t, http.StatusCreated, rec.Code)
			assert.Equal(t, "/bills/9", rec.Header().Get("Location"))
			assert.JSONEq(t, `{
				"id": 9,
				"billNumber": "B-77",
				"issuedAt": "2024-02-29",
				"subtotal": 0.02,
				"tax": 1.50,
				"total": 1.52,
				"currency": "USD"
			}`, rec.Body.String())
		})
	})

	t.Run("when_service_returns_validation_error", func(t *testing.T) {
		t.Run("should_return_every_field_error", func(t *testing.T) {
			mockSvc := mocks.NewMockService(gomock.NewController(t))
			handler := &Handler{service: mockSvc}
			verr := models.NewValidationError()
			verr.Add("tax", "Tax cannot be negative.")
			verr.Add("lines", "At least one line is required.")
			mockSvc.EXPECT().CreateBill(gomock.Any(), gomock.Any()).Return(nil, verr)

			rec := postBills(handler, validBody)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{
				"type": "about:blank",
				"title": "Validation failed",
				"status": 400,
				"errors": {
					"tax": ["Tax cannot be negative."],
					"lines": ["At least one line is required."]
				}
			}`, rec.Body.String())
		})
	})

	t.Run("when_bill_number_exists", func(t *testing.T) {
		t.Run("should_return_conflict", func(t *testing.T) {
			mockSvc := mocks.NewMockService(gomock.NewController(t))
			handler := &Handler{service: mockSvc}
			mockSvc.EXPECT().CreateBill(gomock.Any(), gomock.Any()).
				Return(nil, fmt.Errorf("create: %w", &models.ConflictError{BillNumber: "B-77"}))

			rec := postBills(handler, validBody)

			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.JSONEq(t, `{
				"type": "about:blank",
				"title": "Bill number 'B-77' already exists.",
				"status": 409
			}`, rec.Body.String())
		})
	})

	t.Run("when_service_fails_unexpectedly", func(t *testing.T) {
		t.Run("should_return_opaque_error", func(t *testing.T) {
			mockSvc := mocks.NewMockService(gomock.NewController(t))
			handler := &Handler{service: mockSvc}
			mockSvc.EXPECT().CreateBill(gomock.Any(), gomock.Any()).
				Return(nil, errors.New(`pq: relation "bill" does not exist`))

			rec := postBills(handler, validBody)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "relation")
			assert.JSONEq(t, `{
				"type": "about:blank",
				"title": "An unexpected error occurred.",
				"status": 500
			}`, rec.Body.String())
		})

		t.Run("should_recover_from_panic", func(t *testing.T) {
			mockSvc := mocks.NewMockService(gomock.NewController(t))
			handler := &Handler{service: mockSvc}
			mockSvc.EXPECT().CreateBill(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ interface{}, _ *models.CreateBillRequest) (*models.Bill, error) {
					panic("nil map")
				})

			rec := postBills(handler, validBody)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "nil map")
		})
	})
}

func TestCreateBill_BrokerUnavailable(t *testing.T) {
	t.Run("when_every_publish_fails", func(t *testing.T) {
		t.Run("should_still_create_the_bill", func(t *testing.T) {
			repo := &repository.FakeRepo{}
			publisher := extMocks.NewMockEventPublisher(gomock.NewController(t))
			publisher.EXPECT().PublishBillCreated(gomock.Any(), gomock.Any()).
				Return(&models.BrokerError{Op: "publish", Err: errors.New("connection refused")}).
				Times(1)
			cfg := &models.AppConfig{
				Messaging: models.MessagingConfig{
					SourceTag: func() string { return "go-api" },
				},
			}
			handler := &Handler{service: core.NewService(cfg, repo, publisher, nil)}

			rec := postBills(handler, validBody)

			assert.Equal(t, http.StatusCreated, rec.Code)
			assert.Equal(t, "/bills/1", rec.Header().Get("Location"))
			assert.JSONEq(t, `{
				"id": 1,
				"billNumber": "B-77",
				"issuedAt": "2024-02-29",
				"subtotal": 0.02,
				"tax": 1.50,
				"total": 1.52,
				"currency": "USD"
			}`, rec.Body.String())
			assert.Equal(t, 1, repo.Count())
		})
	})
}

func TestListBills(t *testing.T) {
	t.Run("when_bills_exist", func(t *testing.T) {
		t.Run("should_return_summaries", func(t *testing.T) {
			mockSvc := mocks.NewMockService(gomock.NewController(t))
			handler := &Handler{service: mockSvc}
			mockSvc.EXPECT().ListBills(gomock.Any()).Return([]*models.BillSummary{{
				ID:         1,
				BillNumber: "B-1",
				IssuedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				Total:      decimal.RequireFromString("10.5"),
				Currency:   "USD",
			}}, nil)
			rec := httptest.NewRecorder()

			handler.ListBills(rec, httptest.NewRequest(http.MethodGet, "/bills", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `[{"id":1,"billNumber":"B-1","issuedAt":"2024-01-01","total":10.50,"currency":"USD"}]`, rec.Body.String())
		})
	})

	t.Run("when_no_bills_exist", func(t *testing.T) {
		t.Run("should_return_empty_array", func(t *testing.T) {
			mockSvc := mocks.NewMockService(gomock.NewController(t))
			handler := &Handler{service: mockSvc}
			mockSvc.EXPECT().ListBills(gomock.Any()).Return(nil, nil)
			rec := httptest.NewRecorder()

			handler.ListBills(rec, httptest.NewRequest(http.MethodGet, "/bills", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `[]`, rec.Body.String())
		})
	})

	t.Run("when_service_fails", func(t *testing.T) {
		t.Run("should_return_opaque_error", func(t *testing.T) {
			mockSvc := mocks.NewMockService(gomock.NewController(t))
			handler := &Handler{service: mockSvc, listTimeout: time.Second}
			mockSvc.EXPECT().ListBills(gomock.Any()).Return(nil, errors.New("db down"))
			rec := httptest.NewRecorder()

			handler.ListBills(rec, httptest.NewRequest(http.MethodGet, "/bills", nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "db down")
		})
	})
}

type fakeBroker struct {
	state ext_services.State
}

func (b *fakeBroker) State() ext_services.State { return b.state }
func (b *fakeBroker) Close() error              { return nil }

func TestHealth(t *testing.T) {
	t.Run("should_report_broker_state", func(t *testing.T) {
		handler := &Handler{broker: &fakeBroker{state: ext_services.StateReady}}
		rec := httptest.NewRecorder()

		handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"service":"billing","status":"ok","broker":"ready"}`, rec.Body.String())
	})
}

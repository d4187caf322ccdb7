package core

import (
	"context"
	"fmt"
	"time"

	"encore.app/billing/ext_services"
	"encore.app/billing/models"
	"encore.app/billing/repository"
	"encore.dev/rlog"
)

//go:generate mockgen -package=mocks -destination=mocks/service_mock.go . Service
type Service interface {
	CreateBill(ctx context.Context, req *models.CreateBillRequest) (*models.Bill, error)
	ListBills(ctx context.Context) ([]*models.BillSummary, error)
}

type service struct {
	repository repository.Repository
	publisher  ext_services.EventPublisher
	scheduler  RepublishScheduler
	cfg        *models.AppConfig
	now        func() time.Time
}

// NewService wires the orchestrator. A nil scheduler disables out-of-band republish.
func NewService(
	cfg *models.AppConfig, repository repository.Repository, publisher ext_services.EventPublisher, scheduler RepublishScheduler,
) *service {
	log := rlog.With("module", "billing_core")
	log.Info("billing service initialized",
		"repository_available", repository != nil,
		"publisher_available", publisher != nil,
		"republish_available", scheduler != nil)

	return &service{
		repository: repository,
		publisher:  publisher,
		scheduler:  scheduler,
		cfg:        cfg,
		now:        time.Now,
	}
}

// CreateBill validates, stores and announces a new bill.
// Only validation, conflict and storage failures are returned; the event is best effort.
func (s *service) CreateBill(ctx context.Context, req *models.CreateBillRequest) (*models.Bill, error) {
	log := rlog.With("module", "billing_core")
	log.Info("creating new bill", "lines_count", len(req.Lines))

	bill, err := models.NewBill(req.Input())
	if err != nil {
		log.Warn("bill rejected by validation", "error", err)
		return nil, err
	}

	log = log.With("bill_number", bill.BillNumber)
	if !bill.IsKnownCurrency() {
		log.Warn("currency is not an ISO-4217 code", "currency", bill.Currency)
	}

	exists, err := s.repository.ExistsByBillNumber(ctx, bill.BillNumber)
	if err != nil {
		log.Error("failed to check bill number", "error", err)
		return nil, fmt.Errorf("failed to check bill number: %w", err)
	}
	if exists {
		log.Warn("bill number already exists")
		return nil, &models.ConflictError{BillNumber: bill.BillNumber}
	}

	persisted, err := s.repository.CreateInTransaction(ctx, bill)
	if err != nil {
		if models.IsConflict(err) {
			log.Warn("bill number taken by a concurrent request")
			return nil, &models.ConflictError{BillNumber: bill.BillNumber, Err: err}
		}
		log.Error("failed to store bill", "error", err)
		return nil, fmt.Errorf("failed to store bill: %w", err)
	}

	log = log.With("bill_id", persisted.ID)
	log.Info("bill stored",
		"subtotal", persisted.Subtotal.String(),
		"total", persisted.Total.String())

	s.publishCreated(ctx, log, persisted)

	return persisted, nil
}

// publishCreated never fails the create: a lost event is logged and handed to the republish workflow
func (s *service) publishCreated(ctx context.Context, log rlog.Ctx, bill *models.Bill) {
	event, ok := models.NewBillCreatedEvent(bill, s.now(), s.cfg.Messaging.SourceTag())
	if !ok {
		log.Error("stored bill has no id, event not published")
		return
	}

	err := s.publisher.PublishBillCreated(ctx, event)
	if err == nil {
		log.Info("bill created event published")
		return
	}

	log.Error("bill created but event was not published",
		"signal", "bill_created_publish_failed",
		"error", err)

	if s.scheduler == nil {
		return
	}
	// the request may already be past its deadline
	if err := s.scheduler.ScheduleRepublish(context.WithoutCancel(ctx), event); err != nil {
		log.Error("failed to schedule republish, event is lost", "error", err)
		return
	}
	log.Info("republish scheduled")
}

func (s *service) ListBills(ctx context.Context) ([]*models.BillSummary, error) {
	log := rlog.With("module", "billing_core")
	log.Info("listing bills")

	bills, err := s.repository.ListBills(ctx)
	if err != nil {
		log.Error("failed to list bills", "error", err)
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}

	log.Info("bills listed successfully", "count", len(bills))
	return bills, nil
}

package billing

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"encore.app/billing/core"
	"encore.app/billing/ext_services"
	"encore.app/billing/models"
	"encore.app/billing/repository"
	"encore.dev/config"
	"encore.dev/rlog"
	"encore.dev/storage/cache"
	"encore.dev/storage/sqldb"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// maxBodyBytes bounds the size of a create bill request
const maxBodyBytes = 1 << 20

// brokerLifecycle is the part of the broker the handler manages
type brokerLifecycle interface {
	State() ext_services.State
	Close() error
}

//encore:service
type Handler struct {
	service        core.Service
	broker         brokerLifecycle
	temporalClient client.Client
	worker         worker.Worker

	createTimeout time.Duration
	listTimeout   time.Duration
}

var db = sqldb.NewDatabase("billing", sqldb.DatabaseConfig{
	Migrations: "./migrations",
})

var cacheCluster = cache.NewCluster("billing", cache.ClusterConfig{
	EvictionPolicy: cache.AllKeysLRU,
})

// Load loads the application configuration
var cfg = config.Load[*models.AppConfig]()

var secrets struct {
	TemporalApiKey   string
	RabbitMQPassword string
}

// knownBillNumbers maps stored bill numbers to their bill id
var knownBillNumbers = cache.NewIntKeyspace[string](cacheCluster, cache.KeyspaceConfig{
	KeyPattern:    "known-bill-number/:key",
	DefaultExpiry: cache.ExpireIn(time.Duration(cfg.Billing.KnownBillNumberTTL()) * time.Second),
})

func initHandler() (*Handler, error) {
	log := rlog.With("module", "billing_handler")
	log.Info("initializing billing handler")

	// Use configured Temporal host port
	temporalClient, err := client.Dial(client.Options{
		HostPort:          cfg.Temporal.Address(),
		Namespace:         cfg.Temporal.Namespace(),
		Logger:            rlog.With("module", "temporal_worker"),
		ConnectionOptions: client.ConnectionOptions{TLS: &tls.Config{}},
		Credentials:       client.NewAPIKeyStaticCredentials(secrets.TemporalApiKey),
	})
	if err != nil {
		log.Error("failed to create temporal client", "error", err)
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	log.Info("temporal client created successfully")

	repo := repository.NewCachedRepository(repository.NewSQLRepository(db), knownBillNumbers)
	log.Info("SQL repository initialized")

	broker := ext_services.NewBroker(
		ext_services.AMQPDialer(cfg, secrets.RabbitMQPassword),
		cfg.Messaging.BillCreatedQueue(),
	)
	publisher := ext_services.NewBrokerPublisher(broker)
	log.Info("event publisher initialized", "queue", broker.Queue())

	var scheduler core.RepublishScheduler
	if cfg.Messaging.RepublishEnabled() {
		scheduler = core.NewRepublishScheduler(cfg, temporalClient)
	}

	billingService := core.NewService(cfg, repo, publisher, scheduler)
	log.Info("billing core service initialized")

	// Use configured task queue
	w := worker.New(temporalClient, cfg.Temporal.TaskQueue(), worker.Options{})
	log.Info("temporal worker created", "task_queue", cfg.Temporal.TaskQueue())

	billingWorkflows := core.NewBillWorkflows(cfg)
	w.RegisterWorkflow(billingWorkflows.RepublishBillCreated)
	log.Info("republish workflow registered")

	activities := core.NewBillingActivities(publisher)
	w.RegisterActivity(activities.PublishBillCreated)
	log.Info("temporal activities registered", "activities", []string{"PublishBillCreated"})

	err = w.Start()
	if err != nil {
		log.Error("worker failed to start", "error", err)
		w.Stop()
		_ = broker.Close()
		temporalClient.Close()
		return nil, fmt.Errorf("failed to start temporal worker: %w", err)
	}
	log.Info("temporal worker started successfully")

	log.Info("billing handler initialization completed")
	return &Handler{
		service:        billingService,
		broker:         broker,
		temporalClient: temporalClient,
		worker:         w,
		createTimeout:  time.Duration(cfg.Billing.CreateTimeout()) * time.Second,
		listTimeout:    time.Duration(cfg.Billing.ListTimeout()) * time.Second,
	}, nil
}

// Shutdown gracefully shuts down the service
func (h *Handler) Shutdown(force context.Context) {
	log := rlog.With("module", "billing_handler")
	log.Info("shutting down billing handler")

	h.worker.Stop()
	log.Info("temporal worker stopped")

	if err := h.broker.Close(); err != nil {
		log.Warn("failed to close broker connection", "error", err)
	}
	log.Info("broker connection closed")

	h.temporalClient.Close()
	log.Info("temporal client closed")

	log.Info("billing handler shutdown completed")
}

// CreateBill validates and stores a bill, then announces it on the message broker
//
//encore:api public raw method=POST path=/bills
func (h *Handler) CreateBill(w http.ResponseWriter, req *http.Request) {
	log := rlog.With("module", "billing_handler").With("http_method", "POST").With("http_path", "/bills")
	log.Info("creating new bill via HTTP API")
	defer recoverPanic(w, log)

	ctx, cancel := withTimeout(req.Context(), h.createTimeout)
	defer cancel()

	body, err := DecodeCreateBillRequest(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		writeError(w, log, err)
		return
	}

	bill, err := h.service.CreateBill(ctx, body)
	if err != nil {
		writeError(w, log, err)
		return
	}

	log.Info("bill created via HTTP API", "bill_id", bill.ID)
	w.Header().Set("Location", fmt.Sprintf("/bills/%d", bill.ID))
	writeJSON(w, http.StatusCreated, models.NewCreateBillResponse(bill))
}

// ListBills returns every bill with its computed total
//
//encore:api public raw method=GET path=/bills
func (h *Handler) ListBills(w http.ResponseWriter, req *http.Request) {
	log := rlog.With("module", "billing_handler").With("http_method", "GET").With("http_path", "/bills")
	log.Info("listing bills via HTTP API")
	defer recoverPanic(w, log)

	ctx, cancel := withTimeout(req.Context(), h.listTimeout)
	defer cancel()

	bills, err := h.service.ListBills(ctx)
	if err != nil {
		writeError(w, log, err)
		return
	}

	items := make([]models.BillListItem, 0, len(bills))
	for _, b := range bills {
		items = append(items, models.NewBillListItem(b))
	}
	writeJSON(w, http.StatusOK, items)
}

// Health reports the service status and the broker connection state
//
//encore:api public raw method=GET path=/health
func (h *Handler) Health(w http.ResponseWriter, req *http.Request) {
	state := ext_services.StateDisconnected
	if h.broker != nil {
		state = h.broker.State()
	}
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Service: "billing",
		Status:  "ok",
		Broker:  state.String(),
	})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

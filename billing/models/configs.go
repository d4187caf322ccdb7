package models

import "encore.dev/config"

// AppConfig holds the main application configuration
type AppConfig struct {
	// Temporal configuration
	Temporal TemporalConfig

	// Message broker configuration
	Messaging MessagingConfig

	// Billing configuration
	Billing BillingConfig
}

// TemporalConfig holds Temporal workflow engine configuration
type TemporalConfig struct {
	// Connection settings
	Address   config.String
	Namespace config.String
	TaskQueue config.String

	// Workflow settings
	RepublishExecutionTimeout   config.Int // in seconds
	ActivityStartToCloseTimeout config.Int // in seconds
	ActivityRetryPolicy         ActivityRetryPolicy
}

// ActivityRetryPolicy holds Temporal activity retry configuration
type ActivityRetryPolicy struct {
	InitialInterval    config.Int // in seconds
	BackoffCoefficient config.Float64
	MaximumInterval    config.Int // in seconds
	MaximumAttempts    config.Int
}

// MessagingConfig holds RabbitMQ configuration. The password is a secret.
type MessagingConfig struct {
	Host     config.String
	Port     config.Int
	VHost    config.String
	Username config.String

	BillCreatedQueue config.String
	SourceTag        config.String
	DialTimeout      config.Int // in seconds

	// RepublishEnabled schedules an out-of-band republish when a publish fails
	RepublishEnabled config.Bool
}

// BillingConfig holds billing-specific configuration
type BillingConfig struct {
	CreateTimeout      config.Int // in seconds
	ListTimeout        config.Int // in seconds
	KnownBillNumberTTL config.Int // in seconds
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"encore.app/billing/models"
	"encore.dev/rlog"
	"encore.dev/storage/sqldb"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// billNumberConstraint is the unique constraint on bill.bill_number
const billNumberConstraint = "bill_bill_number_key"

// Repository defines the interface for data persistence
type Repository interface {
	// ExistsByBillNumber is a fast, non-authoritative duplicate check
	ExistsByBillNumber(ctx context.Context, billNumber string) (bool, error)
	// CreateInTransaction stores the bill and its lines atomically and returns the bill with its id.
	// A duplicate bill number yields *models.ConflictError.
	CreateInTransaction(ctx context.Context, bill *models.Bill) (*models.Bill, error)
	ListBills(ctx context.Context) ([]*models.BillSummary, error)
}

// pgxDB is the subset of *pgxpool.Pool the repository needs
type pgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SQLRepository implements Repository on PostgreSQL through pgx
type SQLRepository struct {
	db pgxDB
}

// NewSQLRepository creates a new SQL repository
func NewSQLRepository(db *sqldb.Database) Repository {
	log := rlog.With("module", "billing_repository")
	log.Info("SQL repository initialized", "database_available", db != nil)
	return &SQLRepository{db: sqldb.Driver(db)}
}

func (r *SQLRepository) ExistsByBillNumber(ctx context.Context, billNumber string) (bool, error) {
	log := rlog.With("module", "billing_repository").With("bill_number", billNumber)

	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bill WHERE bill_number = $1)`, billNumber).Scan(&exists)
	if err != nil {
		log.Error("failed to check bill number", "error", err)
		return false, err
	}

	log.Debug("bill number checked", "exists", exists)
	return exists, nil
}

func (r *SQLRepository) CreateInTransaction(ctx context.Context, bill *models.Bill) (*models.Bill, error) {
	log := rlog.With("module", "billing_repository").With("bill_number", bill.BillNumber)
	log.Info("creating bill in database", "lines_count", len(bill.Lines))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		log.Error("failed to start transaction", "error", err)
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO bill (bill_number, issued_at, customer_name, subtotal, tax, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		bill.BillNumber,
		bill.IssuedAt,
		bill.CustomerName,
		bill.Subtotal,
		bill.Tax,
		bill.Currency,
	).Scan(&id)
	if err != nil {
		return nil, r.translate(log, bill.BillNumber, "insert bill", err)
	}

	batch := &pgx.Batch{}
	for _, line := range bill.Lines {
		batch.Queue(`
			INSERT INTO bill_line (bill_id, line_no, concept, quantity, unit_amount, line_amount)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, line.LineNo, line.Concept, line.Quantity, line.UnitAmount, line.LineAmount)
	}
	results := tx.SendBatch(ctx, batch)
	for range bill.Lines {
		if _, err = results.Exec(); err != nil {
			results.Close()
			return nil, r.translate(log, bill.BillNumber, "insert bill lines", err)
		}
	}
	if err = results.Close(); err != nil {
		return nil, r.translate(log, bill.BillNumber, "insert bill lines", err)
	}

	// the uniqueness constraint may only fire here when it is deferred
	if err = tx.Commit(ctx); err != nil {
		return nil, r.translate(log, bill.BillNumber, "commit", err)
	}

	persisted := *bill
	persisted.ID = id
	log.Info("bill created successfully in database", "bill_id", id)
	return &persisted, nil
}

func (r *SQLRepository) ListBills(ctx context.Context) ([]*models.BillSummary, error) {
	log := rlog.With("module", "billing_repository")
	log.Debug("listing bills")

	rows, err := r.db.Query(ctx, `
		SELECT b.id,
		       b.bill_number,
		       b.issued_at,
		       COALESCE(SUM(bl.line_amount), 0) + b.tax AS total,
		       b.currency
		FROM bill b
		LEFT JOIN bill_line bl ON bl.bill_id = b.id
		GROUP BY b.id, b.bill_number, b.issued_at, b.tax, b.currency
		ORDER BY b.id
	`)
	if err != nil {
		log.Error("failed to query bills", "error", err)
		return nil, err
	}
	defer rows.Close()

	bills := make([]*models.BillSummary, 0)
	for rows.Next() {
		s := &models.BillSummary{}
		if err := rows.Scan(&s.ID, &s.BillNumber, &s.IssuedAt, &s.Total, &s.Currency); err != nil {
			log.Error("failed to scan bill row", "error", err)
			return nil, err
		}
		bills = append(bills, s)
	}
	if err := rows.Err(); err != nil {
		log.Error("failed to iterate bill rows", "error", err)
		return nil, err
	}

	log.Debug("bills listed successfully", "count", len(bills))
	return bills, nil
}

func (r *SQLRepository) translate(log rlog.Ctx, billNumber, op string, err error) error {
	if isBillNumberViolation(err) {
		log.Warn("bill number rejected by unique constraint", "op", op)
		return &models.ConflictError{BillNumber: billNumber, Err: err}
	}
	log.Error("failed to create bill in database", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

// isBillNumberViolation reports whether err is a unique violation of the bill number.
// Other unique constraints, like the line number per bill, are not conflicts.
func isBillNumberViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return pgErr.ConstraintName == "" || pgErr.ConstraintName == billNumberConstraint
}

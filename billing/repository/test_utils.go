package repository

import (
	"context"
	"sort"
	"sync"

	"encore.app/billing/models"
)

// FakeRepo is an in-memory repo used for testing.
// It enforces bill number uniqueness the way the database does.
type FakeRepo struct {
	mu     sync.Mutex
	nextID int64
	bills  map[int64]*models.Bill
	byNum  map[string]int64

	// ExistsErr, CreateErr and ListErr are returned by the matching method when set
	ExistsErr error
	CreateErr error
	ListErr   error

	// HidePrecheck makes ExistsByBillNumber always report false, as in a lost race
	HidePrecheck bool

	ExistsCalls int
	CreateCalls int
}

func (m *FakeRepo) ExistsByBillNumber(ctx context.Context, billNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExistsCalls++
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	if m.HidePrecheck {
		return false, nil
	}
	_, ok := m.byNum[billNumber]
	return ok, nil
}

func (m *FakeRepo) CreateInTransaction(ctx context.Context, bill *models.Bill) (*models.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if m.bills == nil {
		m.bills = make(map[int64]*models.Bill)
		m.byNum = make(map[string]int64)
	}
	if _, ok := m.byNum[bill.BillNumber]; ok {
		return nil, &models.ConflictError{BillNumber: bill.BillNumber}
	}

	m.nextID++
	persisted := *bill
	persisted.ID = m.nextID
	m.bills[persisted.ID] = &persisted
	m.byNum[persisted.BillNumber] = persisted.ID

	out := persisted
	return &out, nil
}

func (m *FakeRepo) ListBills(ctx context.Context) ([]*models.BillSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]*models.BillSummary, 0, len(m.bills))
	for _, b := range m.bills {
		out = append(out, &models.BillSummary{
			ID:         b.ID,
			BillNumber: b.BillNumber,
			IssuedAt:   b.IssuedAt,
			Total:      b.Total,
			Currency:   b.Currency,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Count returns the number of stored bills
func (m *FakeRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bills)
}

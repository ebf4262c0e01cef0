package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/okian/pinta/internal/domain/model"
)

// MemoryStore is an in-process Store. Safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	customers map[string]model.Customer
	records   []model.PurchaseRecord
	settings

	fail error
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	m := &MemoryStore{
		customers: make(map[string]model.Customer),
		settings:  defaultSettings(),
	}
	for _, opt := range opts {
		opt(&m.settings)
	}
	return m
}

// InsertCustomer adds or replaces a customer.
func (m *MemoryStore) InsertCustomer(_ context.Context, c model.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

// InsertSales appends ledger lines. A zero DocumentTypeID is treated as a sale.
func (m *MemoryStore) InsertSales(_ context.Context, records []model.PurchaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if rec.DocumentTypeID == 0 {
			rec.DocumentTypeID = m.saleDocumentTypeID
		}
		m.records = append(m.records, rec)
	}
	return nil
}

// InsertSale appends one ledger line.
func (m *MemoryStore) InsertSale(ctx context.Context, rec model.PurchaseRecord) error {
	return m.InsertSales(ctx, []model.PurchaseRecord{rec})
}

// SetFail makes every later read return err wrapped in ErrUnavailable.
// A nil err restores normal reads.
func (m *MemoryStore) SetFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// failure must be called with m.mu held.
func (m *MemoryStore) failure() error {
	if m.fail == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, m.fail)
}

// Sales implements Store.
func (m *MemoryStore) Sales(_ context.Context, q SalesQuery) ([]model.PurchaseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure(); err != nil {
		return nil, err
	}

	var out []model.PurchaseRecord
	for _, rec := range m.records {
		if rec.DocumentTypeID != m.saleDocumentTypeID {
			continue
		}
		if q.CustomerID != "" && rec.CustomerID != q.CustomerID {
			continue
		}
		if !q.Window.Contains(rec.Timestamp) {
			continue
		}
		rec.Timestamp = rec.Timestamp.In(m.location)
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Customer implements Store.
func (m *MemoryStore) Customer(_ context.Context, id string) (model.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure(); err != nil {
		return model.Customer{}, err
	}
	c, ok := m.customers[id]
	if !ok {
		return model.Customer{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// SearchCustomers implements Store. Matching is case-insensitive.
func (m *MemoryStore) SearchCustomers(_ context.Context, term string) ([]model.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure(); err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(term))
	var out []model.Customer
	for _, c := range m.customers {
		if matches(c, needle) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matches(c model.Customer, needle string) bool {
	fields := []string{c.Name}
	for _, p := range []*string{c.PhoneNumber, c.TaxID, c.Email} {
		if p != nil {
			fields = append(fields, *p)
		}
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// Catalog implements Store.
func (m *MemoryStore) Catalog(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []string
	for _, rec := range m.records {
		if rec.DocumentTypeID != m.saleDocumentTypeID {
			continue
		}
		if _, ok := seen[rec.ProductName]; ok {
			continue
		}
		seen[rec.ProductName] = struct{}{}
		out = append(out, rec.ProductName)
	}
	sort.Strings(out)
	return out, nil
}

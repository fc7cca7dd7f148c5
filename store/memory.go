package store

import (
	"sync"

	"github.com/arkantrust/vending-checkout/models"
)

// Memory is an in-process Store. Checkouts are deep-copied on the way in and
// on the way out, timestamp pointers included, so callers can never alias
// stored state.
type Memory struct {
	mu        sync.RWMutex
	checkouts map[string]models.Checkout
	sales     []models.Sale
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{checkouts: make(map[string]models.Checkout)}
}

// GetCheckout returns a copy of the stored checkout or ErrNotFound.
func (m *Memory) GetCheckout(id string) (*models.Checkout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.checkouts[id]
	if !ok {
		return nil, ErrNotFound
	}
	c = c.Clone()
	return &c, nil
}

// PutCheckout stores a copy of c, replacing any checkout with the same id.
func (m *Memory) PutCheckout(c *models.Checkout) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkouts[c.ID] = c.Clone()
	return nil
}

// ListCheckouts returns copies of every checkout in no particular order.
func (m *Memory) ListCheckouts() ([]models.Checkout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]models.Checkout, 0, len(m.checkouts))
	for _, c := range m.checkouts {
		items = append(items, c.Clone())
	}
	return items, nil
}

// CommitConsumption replaces the checkout and appends the sale under one
// lock. It fails with ErrNotFound, changing nothing, if the checkout is
// unknown.
func (m *Memory) CommitConsumption(c *models.Checkout, s *models.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.checkouts[c.ID]; !ok {
		return ErrNotFound
	}
	m.checkouts[c.ID] = c.Clone()
	m.sales = append(m.sales, *s)
	return nil
}

// ListSales returns a copy of the sales log in append order.
func (m *Memory) ListSales() ([]models.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]models.Sale, len(m.sales))
	copy(items, m.sales)
	return items, nil
}

// Close is a no-op; there is nothing to release.
func (m *Memory) Close() error {
	return nil
}

package store_test

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkantrust/vending-checkout/models"
	"github.com/arkantrust/vending-checkout/store"
)

func newBoltStore(t *testing.T) *store.Bolt {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewBolt(filepath.Join(dir, "test.db"))
	require.NoError(t, err, "failed to open test store")
	t.Cleanup(func() { s.Close() })
	return s
}

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s store.Store)) {
	t.Run("memory", func(t *testing.T) {
		s := store.NewMemory()
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
	t.Run("bolt", func(t *testing.T) {
		fn(t, newBoltStore(t))
	})
}

func pendingCheckout(id string) *models.Checkout {
	return &models.Checkout{
		ID:               id,
		MachineID:        "M1",
		Quantity:         2,
		AmountMinorUnits: 900,
		Status:           models.StatusPending,
		CreatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		PaymentReference: "PIX-FAKE-" + id,
	}
}

func TestListEmpty(t *testing.T) {
	backends(t, func(t *testing.T, s store.Store) {
		checkouts, err := s.ListCheckouts()
		require.NoError(t, err)
		assert.Empty(t, checkouts)

		sales, err := s.ListSales()
		require.NoError(t, err)
		assert.NotNil(t, sales)
		assert.Empty(t, sales)
	})
}

func TestGetNotFound(t *testing.T) {
	backends(t, func(t *testing.T, s store.Store) {
		_, err := s.GetCheckout("missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPutAndGetCheckout(t *testing.T) {
	backends(t, func(t *testing.T, s store.Store) {
		c := pendingCheckout("CHK_1")
		require.NoError(t, s.PutCheckout(c))

		got, err := s.GetCheckout("CHK_1")
		require.NoError(t, err)
		assert.Equal(t, c.AmountMinorUnits, got.AmountMinorUnits)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.True(t, got.CreatedAt.Equal(c.CreatedAt))
		assert.Nil(t, got.PaidAt)
		assert.Nil(t, got.ConsumedAt)

		// Mutating the returned copy must not leak into the store.
		got.Status = models.StatusConsumed
		again, err := s.GetCheckout("CHK_1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, again.Status)
	})
}

func TestStoredTimestampsAreNotAliased(t *testing.T) {
	backends(t, func(t *testing.T, s store.Store) {
		c := pendingCheckout("CHK_1")
		paidAt := c.CreatedAt.Add(time.Minute)
		c.Status = models.StatusApproved
		c.PaidAt = &paidAt
		require.NoError(t, s.PutCheckout(c))

		// Rewriting the caller's pointer after the write must not reach the store.
		*c.PaidAt = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
		got, err := s.GetCheckout("CHK_1")
		require.NoError(t, err)
		require.NotNil(t, got.PaidAt)
		assert.True(t, got.PaidAt.Equal(paidAt), "stored paidAt changed to %s", got.PaidAt)

		// Nor may rewriting a pointer handed out by a read.
		*got.PaidAt = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
		again, err := s.GetCheckout("CHK_1")
		require.NoError(t, err)
		assert.True(t, again.PaidAt.Equal(paidAt))

		listed, err := s.ListCheckouts()
		require.NoError(t, err)
		require.Len(t, listed, 1)
		*listed[0].PaidAt = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)

		consumedAt := paidAt.Add(time.Minute)
		done := *again
		done.Status = models.StatusConsumed
		done.ConsumedAt = &consumedAt
		require.NoError(t, s.CommitConsumption(&done, &models.Sale{ID: "SALE_1", CheckoutID: "CHK_1"}))
		*done.ConsumedAt = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)

		final, err := s.GetCheckout("CHK_1")
		require.NoError(t, err)
		assert.True(t, final.PaidAt.Equal(paidAt))
		require.NotNil(t, final.ConsumedAt)
		assert.True(t, final.ConsumedAt.Equal(consumedAt))
	})
}

func TestCommitConsumptionAppendsInOrder(t *testing.T) {
	backends(t, func(t *testing.T, s store.Store) {
		// More than 255 entries so a little-endian or string key would
		// break ordering.
		const n = 300
		for i := 0; i < n; i++ {
			c := pendingCheckout(fmt.Sprintf("CHK_%d", i))
			require.NoError(t, s.PutCheckout(c))

			c.Status = models.StatusConsumed
			sale := &models.Sale{
				ID:               fmt.Sprintf("SALE_%d", i),
				CheckoutID:       c.ID,
				MachineID:        c.MachineID,
				Quantity:         c.Quantity,
				AmountMinorUnits: c.AmountMinorUnits,
			}
			require.NoError(t, s.CommitConsumption(c, sale))
		}

		sales, err := s.ListSales()
		require.NoError(t, err)
		require.Len(t, sales, n)
		for i, sale := range sales {
			assert.Equal(t, fmt.Sprintf("SALE_%d", i), sale.ID)
		}

		got, err := s.GetCheckout("CHK_0")
		require.NoError(t, err)
		assert.Equal(t, models.StatusConsumed, got.Status)
	})
}

func TestCommitConsumptionUnknownCheckout(t *testing.T) {
	backends(t, func(t *testing.T, s store.Store) {
		c := pendingCheckout("ghost")
		err := s.CommitConsumption(c, &models.Sale{ID: "SALE_x", CheckoutID: "ghost"})
		assert.ErrorIs(t, err, store.ErrNotFound)

		sales, err := s.ListSales()
		require.NoError(t, err)
		assert.Empty(t, sales, "failed commit must not append a sale")
	})
}

func TestBoltReopenKeepsSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := store.NewBolt(path)
	require.NoError(t, err)
	c := pendingCheckout("CHK_a")
	require.NoError(t, s.PutCheckout(c))
	require.NoError(t, s.CommitConsumption(c, &models.Sale{ID: "SALE_a", CheckoutID: "CHK_a"}))
	require.NoError(t, s.Close())

	s, err = store.NewBolt(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c = pendingCheckout("CHK_b")
	require.NoError(t, s.PutCheckout(c))
	require.NoError(t, s.CommitConsumption(c, &models.Sale{ID: "SALE_b", CheckoutID: "CHK_b"}))

	sales, err := s.ListSales()
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "SALE_a", sales[0].ID)
	assert.Equal(t, "SALE_b", sales[1].ID)
}

package store

import (
	"encoding/binary"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/arkantrust/vending-checkout/models"
)

var (
	checkoutsBucket = []byte("checkouts")
	salesBucket     = []byte("sales")
)

// Bolt is a BoltDB-backed Store. Values are JSON-encoded records.
//
// Sales are keyed by the bucket's NextSequence encoded big-endian. Bolt keeps
// keys in byte order, so a cursor walk over the sales bucket yields the log
// in append order.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens (or creates) a BoltDB database at the given path and ensures
// both buckets exist.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{checkoutsBucket, salesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Bolt{db: db}, nil
}

// Close releases the database file lock.
func (s *Bolt) Close() error {
	return s.db.Close()
}

// GetCheckout returns the stored checkout or ErrNotFound.
func (s *Bolt) GetCheckout(id string) (*models.Checkout, error) {
	var c models.Checkout

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(checkoutsBucket).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &c)
	})
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// PutCheckout inserts or replaces a checkout.
func (s *Bolt) PutCheckout(c *models.Checkout) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkoutsBucket).Put([]byte(c.ID), data)
	})
}

// ListCheckouts returns every checkout in key order.
func (s *Bolt) ListCheckouts() ([]models.Checkout, error) {
	items := []models.Checkout{}

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(checkoutsBucket).ForEach(func(k, v []byte) error {
			var c models.Checkout
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			items = append(items, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

// CommitConsumption runs the checkout write and the sale append inside a
// single bolt transaction, so a failure on either side rolls back both.
func (s *Bolt) CommitConsumption(c *models.Checkout, sale *models.Sale) error {
	checkoutData, err := json.Marshal(c)
	if err != nil {
		return err
	}
	saleData, err := json.Marshal(sale)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		cb := tx.Bucket(checkoutsBucket)
		if cb.Get([]byte(c.ID)) == nil {
			return ErrNotFound
		}
		if err := cb.Put([]byte(c.ID), checkoutData); err != nil {
			return err
		}

		sb := tx.Bucket(salesBucket)
		seq, err := sb.NextSequence()
		if err != nil {
			return err
		}
		return sb.Put(sequenceKey(seq), saleData)
	})
}

// ListSales walks the sales bucket, which yields append order.
func (s *Bolt) ListSales() ([]models.Sale, error) {
	items := []models.Sale{}

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(salesBucket).ForEach(func(k, v []byte) error {
			var sale models.Sale
			if err := json.Unmarshal(v, &sale); err != nil {
				return err
			}
			items = append(items, sale)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

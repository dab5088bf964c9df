package lotterygateway

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketIdempotency = []byte("idempotency")
	bucketReceipts    = []byte("receipts")

	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Store persists idempotency responses and purchase receipts.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// IdempotencyRecord stores the cached response for an idempotency key.
type IdempotencyRecord struct {
	StatusCode int       `json:"statusCode"`
	Body       []byte    `json:"body"`
	StoredAt   time.Time `json:"storedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Receipt records one settled ticket purchase.
type Receipt struct {
	ID        string    `json:"id"`
	Asset     string    `json:"asset"`
	RoundID   uint64    `json:"roundId"`
	Player    string    `json:"player"`
	Count     uint32    `json:"count"`
	UnitPrice string    `json:"unitPrice"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewStore initialises the BoltDB-backed store.
func NewStore(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketIdempotency, bucketReceipts} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Idempotency returns the cached response for key, if any and unexpired.
func (s *Store) Idempotency(key string) (*IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrNotFound
	}
	var record IdempotencyRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketIdempotency).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &record)
	})
	if err != nil {
		return nil, err
	}
	if s.now().After(record.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &record, nil
}

// PutIdempotency caches a response under key for ttl.
func (s *Store) PutIdempotency(key string, statusCode int, body []byte, ttl time.Duration) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	now := s.now()
	record := IdempotencyRecord{
		StatusCode: statusCode,
		Body:       append([]byte(nil), body...),
		StoredAt:   now,
		ExpiresAt:  now.Add(ttl),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIdempotency).Put([]byte(key), raw)
	})
}

// PutReceipt stores a purchase receipt.
func (s *Store) PutReceipt(receipt *Receipt) error {
	if receipt == nil || strings.TrimSpace(receipt.ID) == "" {
		return errors.New("lotterygateway: receipt id required")
	}
	raw, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReceipts).Put([]byte(receipt.ID), raw)
	})
}

// Receipt loads a purchase receipt by id.
func (s *Store) Receipt(id string) (*Receipt, error) {
	var receipt Receipt
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketReceipts).Get([]byte(strings.TrimSpace(id)))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

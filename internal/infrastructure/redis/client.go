package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "payment:idem:"
	pendingMarker = "pending"
)

// ErrRecordNotFound means the key expired or was released.
var ErrRecordNotFound = errors.New("idempotency record not found")

// Record is what an idempotency key holds: the fingerprint of the request
// that reserved it and, once committed, the payment it produced.
type Record struct {
	PaymentID   int64
	Fingerprint string
}

// Pending reports whether the request that reserved the key is still running.
func (r Record) Pending() bool {
	return r.PaymentID == 0
}

//go:generate mockgen -source=client.go -destination=mocks/mock_client.go -package=mocks

// IdempotencyStore keeps payment idempotency keys. A key is reserved as
// pending for the duration of its request and then points at the payment.
type IdempotencyStore interface {
	// Reserve claims key for a request and reports whether it was free.
	Reserve(ctx context.Context, key, fingerprint string) (bool, error)
	Complete(ctx context.Context, key string, record Record) error
	Lookup(ctx context.Context, key string) (Record, error)
	Release(ctx context.Context, key string) error
	Close() error
}

type Store struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// Connect opens a client and fails fast when the server is unreachable.
func Connect(ctx context.Context, addr string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	slog.Info("connected to Redis", "addr", addr)
	return client, nil
}

// NewStore keeps every key for ttl, pending or complete.
func NewStore(client goredis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Reserve(ctx context.Context, key, fingerprint string) (bool, error) {
	return s.client.SetNX(ctx, keyPrefix+key, encodeRecord(Record{Fingerprint: fingerprint}), s.ttl).Result()
}

func (s *Store) Complete(ctx context.Context, key string, record Record) error {
	return s.client.Set(ctx, keyPrefix+key, encodeRecord(record), s.ttl).Err()
}

func (s *Store) Lookup(ctx context.Context, key string) (Record, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(val)
}

func (s *Store) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Records are stored as "<payment id>:<fingerprint>", with "pending" in place
// of the id until the payment commits.
func encodeRecord(r Record) string {
	id := pendingMarker
	if !r.Pending() {
		id = strconv.FormatInt(r.PaymentID, 10)
	}
	return id + ":" + r.Fingerprint
}

func decodeRecord(val string) (Record, error) {
	id, fingerprint, ok := strings.Cut(val, ":")
	if !ok || fingerprint == "" {
		return Record{}, fmt.Errorf("malformed idempotency record %q", val)
	}
	if id == pendingMarker {
		return Record{Fingerprint: fingerprint}, nil
	}
	paymentID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || paymentID <= 0 {
		return Record{}, fmt.Errorf("malformed idempotency record %q", val)
	}
	return Record{PaymentID: paymentID, Fingerprint: fingerprint}, nil
}

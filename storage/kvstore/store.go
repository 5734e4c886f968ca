// Package kvstore implements storage.Store on a NATS JetStream KeyValue
// bucket.
//
// Append-only kinds are stored under "<kind>.<uuid>". Keyed kinds are stored
// under "<kind>.<natural key>" and updated with compare-and-set. Read replays
// the kind's keys in revision order, so an upserted row sorts by its latest
// update.
package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/metric"
	"github.com/paragnema1/scc/pkg/retry"
	"github.com/paragnema1/scc/storage"
)

var _ storage.Store = (*Store)(nil)

// DefaultBucket is the bucket name used when Config.Bucket is empty.
const DefaultBucket = "scc"

// Config describes the broker and bucket.
type Config struct {
	URL      string
	Bucket   string
	Username string
	Password string
	Token    string
	Timeout  time.Duration
}

// Store is a KeyValue-backed storage.Store.
type Store struct {
	kv      jetstream.KeyValue
	nc      *nats.Conn
	logger  *slog.Logger
	metrics *storage.Metrics
	timeout time.Duration
}

// Option configures a Store
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records storage metrics in registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// Open dials the broker and opens (or creates) the bucket. The returned
// Store owns the connection and closes it on Close.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "kvstore", "Open", "check url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	natsOpts := []nats.Option{
		nats.Name("scc-kvstore-" + uuid.NewString()),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(-1),
	}
	if cfg.Username != "" && cfg.Password != "" {
		natsOpts = append(natsOpts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		natsOpts = append(natsOpts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, natsOpts...)
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err), "kvstore", "Open", "connect")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, errors.WrapFatal(err, "kvstore", "Open", "create jetstream context")
	}

	s, err := New(ctx, js, cfg.Bucket, opts...)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.nc = nc
	s.timeout = cfg.Timeout
	return s, nil
}

// New opens (or creates) bucket on an existing JetStream context. The
// caller keeps ownership of the connection.
func New(ctx context.Context, js jetstream.JetStream, bucket string, opts ...Option) (*Store, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if bucket == "" {
		bucket = DefaultBucket
	}

	kv, err := js.KeyValue(ctx, bucket)
	if stderrors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "SCC yard archive",
			History:     1,
			Storage:     jetstream.FileStorage,
		})
		if stderrors.Is(err, jetstream.ErrBucketExists) {
			kv, err = js.KeyValue(ctx, bucket)
		}
	}
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err), "kvstore", "New", "open bucket "+bucket)
	}

	metrics, err := storage.NewMetrics(o.registry, "jetstream")
	if err != nil {
		return nil, err
	}

	return &Store{
		kv:      kv,
		logger:  o.logger.With("component", "kvstore", "bucket", bucket),
		metrics: metrics,
		timeout: 5 * time.Second,
	}, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Insert implements storage.Store
func (s *Store) Insert(ctx context.Context, kind storage.Kind, rec storage.Record) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveWrite(kind, start, err) }()

	table, err := storage.TableFor(kind)
	if err != nil {
		return err
	}
	row, err := table.Normalize(rec)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if table.Key == "" {
		data, err := json.Marshal(row)
		if err != nil {
			return errors.WrapInvalid(err, "kvstore", "Insert", "encode record")
		}
		if _, err := s.kv.Create(ctx, string(kind)+"."+uuid.NewString(), data); err != nil {
			return errors.WrapTransient(err, "kvstore", "Insert", "create "+string(kind))
		}
		return nil
	}

	return s.upsert(ctx, table, row)
}

// upsert merges row into the stored record with compare-and-set, retrying
// when another writer wins the revision race.
func (s *Store) upsert(ctx context.Context, table storage.Table, row storage.Record) error {
	key := string(table.Kind) + "." + keyToken(row[table.Key].(string))

	cfg := retry.Conflict()
	cfg.Retryable = isConflict
	cfg.OnRetry = func(attempt int, err error, _ time.Duration) {
		s.logger.Debug("KV upsert conflict", "key", key, "attempt", attempt, "error", err)
	}

	err := retry.Do(ctx, cfg, func() error {
		entry, err := s.kv.Get(ctx, key)
		switch {
		case stderrors.Is(err, jetstream.ErrKeyNotFound):
			data, err := json.Marshal(row)
			if err != nil {
				return retry.NonRetryable(err)
			}
			_, err = s.kv.Create(ctx, key, data)
			return err
		case err != nil:
			return err
		}

		current, err := decode(table, entry.Value())
		if err != nil {
			return retry.NonRetryable(err)
		}
		data, err := json.Marshal(storage.Merge(current, row))
		if err != nil {
			return retry.NonRetryable(err)
		}
		_, err = s.kv.Update(ctx, key, data, entry.Revision())
		return err
	})
	if err != nil {
		return errors.WrapTransient(err, "kvstore", "Insert", "upsert "+key)
	}
	return nil
}

// Read implements storage.Store
func (s *Store) Read(ctx context.Context, kind storage.Kind) (_ []storage.Record, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRead(kind, start, err) }()

	table, err := storage.TableFor(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	watcher, err := s.kv.Watch(ctx, string(kind)+".>", jetstream.IgnoreDeletes())
	if err != nil {
		return nil, errors.WrapTransient(err, "kvstore", "Read", "watch "+string(kind))
	}
	defer func() { _ = watcher.Stop() }()

	var out []storage.Record
	for {
		select {
		case <-ctx.Done():
			return nil, errors.WrapTransient(ctx.Err(), "kvstore", "Read", "replay "+string(kind))
		case entry, ok := <-watcher.Updates():
			if !ok || entry == nil {
				return out, nil
			}
			rec, err := decode(table, entry.Value())
			if err != nil {
				s.logger.Warn("Skipping undecodable record", "key", entry.Key(), "error", err)
				continue
			}
			out = append(out, rec)
		}
	}
}

// Close implements storage.Store
func (s *Store) Close() error {
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}

func decode(table storage.Table, data []byte) (storage.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw storage.Record
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return table.Normalize(raw)
}

func isConflict(err error) bool {
	if stderrors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}
	return false
}

// keyToken maps a natural key onto the characters KV keys allow.
func keyToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '=':
			return r
		default:
			return '_'
		}
	}, s)
}

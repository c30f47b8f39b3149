package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"loom/internal/config"
)

// Store manages durable queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.QueueDBPath())
}

// OpenPath opens the queue database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_info`).Scan(&count); err != nil {
		return fmt.Errorf("read schema info: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	return nil
}

// errNotConfigured distinguishes a missing connection from transient I/O so
// callers fail fast with an actionable message instead of retrying.
func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return errors.New("queue store is not configured; check paths.data_dir and restart")
	}
	return nil
}

// CheckHealth verifies the database connection is usable.
func (s *Store) CheckHealth(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("queue store unhealthy: %w", err)
	}
	return nil
}

// EnsureQueue registers a queue by name. Safe to call on every enqueue;
// creation is idempotent.
func (s *Store) EnsureQueue(ctx context.Context, queue string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO queues (name, created_at) VALUES (?, ?)`,
		queue,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ensure queue %q: %w", queue, err)
	}
	return nil
}

// Enqueue appends a transport-encoded message body to the named queue.
func (s *Store) Enqueue(ctx context.Context, queue string, body []byte) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO queue_messages (queue, body, state, delivery_count, enqueued_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?)`,
		queue,
		string(body),
		StateReady,
		now,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue to %q: %w", queue, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Lease claims the oldest ready message on the named queue for leaseFor and
// increments its delivery count. Returns nil when the queue is empty.
// Oldest means insertion sequence: ids are monotonic, while the RFC3339Nano
// timestamp text trims trailing zeros and does not sort chronologically
// within a second.
func (s *Store) Lease(ctx context.Context, queue string, leaseFor time.Duration) (*Delivery, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin lease tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(
		ctx,
		`SELECT `+messageColumns+` FROM queue_messages
         WHERE queue = ? AND state = ?
         ORDER BY id LIMIT 1`,
		queue,
		StateReady,
	)
	delivery, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lease from %q: %w", queue, err)
	}

	now := time.Now().UTC()
	expires := now.Add(leaseFor)
	_, err = tx.ExecContext(
		ctx,
		`UPDATE queue_messages
         SET state = ?, delivery_count = delivery_count + 1,
             lease_expires_at = ?, updated_at = ?
         WHERE id = ?`,
		StateLeased,
		expires.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		delivery.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark leased: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lease: %w", err)
	}

	delivery.State = StateLeased
	delivery.DeliveryCount++
	delivery.LeaseExpiresAt = &expires
	delivery.UpdatedAt = now
	return delivery, nil
}

// Ack marks a delivered message as done.
func (s *Store) Ack(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_messages SET state = ?, lease_expires_at = NULL, updated_at = ? WHERE id = ?`,
		StateDone,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("ack message %d: %w", id, err)
	}
	return nil
}

// Release returns a failed delivery to the ready state for another attempt,
// recording the failure reason.
func (s *Store) Release(ctx context.Context, id int64, reason string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_messages
         SET state = ?, lease_expires_at = NULL, last_error = ?, updated_at = ?
         WHERE id = ?`,
		StateReady,
		nullableString(reason),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("release message %d: %w", id, err)
	}
	return nil
}

// Bury parks a message as dead so it is never delivered again.
func (s *Store) Bury(ctx context.Context, id int64, reason string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_messages
         SET state = ?, lease_expires_at = NULL, last_error = ?, updated_at = ?
         WHERE id = ?`,
		StateDead,
		nullableString(reason),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("bury message %d: %w", id, err)
	}
	return nil
}

// ReclaimExpired returns leased messages whose lease has lapsed back to
// ready. The workflow manager calls this every poll cycle; it is the
// redelivery mechanism behind the at-least-once guarantee.
func (s *Store) ReclaimExpired(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_messages
         SET state = ?, lease_expires_at = NULL, updated_at = ?
         WHERE state = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ?`,
		StateReady,
		now.Format(time.RFC3339Nano),
		StateLeased,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim expired leases: %w", err)
	}
	return res.RowsAffected()
}

// QueueStats returns per-state counts for the named queue.
func (s *Store) QueueStats(ctx context.Context, queue string) (Stats, error) {
	if err := s.ready(); err != nil {
		return Stats{}, err
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT state, COUNT(1) FROM queue_messages WHERE queue = ? GROUP BY state`,
		queue,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var state MessageState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return Stats{}, err
		}
		switch state {
		case StateReady:
			stats.Ready = count
		case StateLeased:
			stats.Leased = count
		case StateDone:
			stats.Done = count
		case StateDead:
			stats.Dead = count
		}
	}
	return stats, rows.Err()
}

// Queues lists the registered queue names.
func (s *Store) Queues(ctx context.Context) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM queues ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Dead returns dead messages for the named queue, oldest first.
func (s *Store) Dead(ctx context.Context, queue string) ([]*Delivery, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+messageColumns+` FROM queue_messages
         WHERE queue = ? AND state = ? ORDER BY enqueued_at, id`,
		queue,
		StateDead,
	)
	if err != nil {
		return nil, fmt.Errorf("list dead messages: %w", err)
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, rows.Err()
}

// PurgeDone removes acked messages, keeping the database small.
func (s *Store) PurgeDone(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue_messages WHERE state = ?`, StateDone)
	if err != nil {
		return 0, fmt.Errorf("purge done messages: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all messages from all queues.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue_messages`)
	if err != nil {
		return 0, fmt.Errorf("clear queue messages: %w", err)
	}
	return res.RowsAffected()
}

const messageColumns = "id, queue, body, state, delivery_count, enqueued_at, updated_at, lease_expires_at, last_error"

func scanDelivery(scanner interface{ Scan(dest ...any) error }) (*Delivery, error) {
	var (
		id            int64
		queueName     string
		body          string
		stateStr      string
		deliveryCount int
		enqueuedRaw   string
		updatedRaw    string
		leaseRaw      sql.NullString
		lastError     sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&queueName,
		&body,
		&stateStr,
		&deliveryCount,
		&enqueuedRaw,
		&updatedRaw,
		&leaseRaw,
		&lastError,
	); err != nil {
		return nil, err
	}

	delivery := &Delivery{
		ID:            id,
		Queue:         queueName,
		Body:          []byte(body),
		State:         MessageState(stateStr),
		DeliveryCount: deliveryCount,
		LastError:     lastError.String,
	}
	if at, err := time.Parse(time.RFC3339Nano, enqueuedRaw); err == nil {
		delivery.EnqueuedAt = at
	}
	if at, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		delivery.UpdatedAt = at
	}
	if leaseRaw.Valid {
		if at, err := time.Parse(time.RFC3339Nano, leaseRaw.String); err == nil {
			delivery.LeaseExpiresAt = &at
		}
	}
	return delivery, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

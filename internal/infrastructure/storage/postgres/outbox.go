package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/change"
	"stockledger/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"` // change kind, e.g. "product", "ledger"
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"` // e.g. "document.changed"
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// Change decodes the payload.
func (m *OutboxMessage) Change() (change.Change, error) {
	var c change.Change
	if err := json.Unmarshal(m.Payload, &c); err != nil {
		return change.Change{}, fmt.Errorf("decode outbox payload: %w", err)
	}
	return c, nil
}

// OutboxNotifier implements change.Notifier by writing changes to sys_outbox
// in the caller's transaction. They become visible to the relay on commit.
type OutboxNotifier struct {
	txManager *TxManager
	onCommit  func(context.Context)
}

var _ change.Notifier = (*OutboxNotifier)(nil)

// NewOutboxNotifier creates an outbox notifier. onCommit, if set, runs after
// every transaction that wrote to the outbox commits (e.g. to wake the relay).
func NewOutboxNotifier(txManager *TxManager, onCommit func(context.Context)) *OutboxNotifier {
	return &OutboxNotifier{txManager: txManager, onCommit: onCommit}
}

// Notify inserts one outbox row per change. It must run inside a transaction.
func (n *OutboxNotifier) Notify(ctx context.Context, changes ...change.Change) error {
	if len(changes) == 0 {
		return nil
	}
	t := n.txManager.GetTx(ctx)
	if t == nil {
		return fmt.Errorf("outbox notify requires transaction context")
	}

	q := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("sys_outbox").
		Columns("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at")

	now := time.Now().UTC()
	for _, c := range changes {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal change: %w", err)
		}
		q = q.Values(id.New(), string(c.Kind), c.ID, c.EventType(), payload, OutboxStatusPending, now)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build outbox insert: %w", err)
	}
	if _, err := t.Exec(ctx, sql, args...); err != nil {
		return MapError(fmt.Errorf("insert outbox messages: %w", err))
	}

	if n.onCommit != nil {
		t.AfterCommit(n.onCommit)
	}
	return nil
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

// Handle implements OutboxHandler.
func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error {
	return f(ctx, msg)
}

// RelayConfig tunes the relay.
type RelayConfig struct {
	BatchSize    int
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultRelayConfig returns the relay defaults.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{BatchSize: 100, MaxRetries: 5, RetryBackoff: time.Minute}
}

// OutboxRelay reads and processes messages from the outbox.
// Used by the background worker to publish events to the message broker.
type OutboxRelay struct {
	txManager *TxManager
	cfg       RelayConfig
	handler   OutboxHandler
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, cfg RelayConfig, handler OutboxHandler) *OutboxRelay {
	def := DefaultRelayConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	return &OutboxRelay{txManager: txManager, cfg: cfg, handler: handler}
}

// ProcessBatch fetches due pending messages and hands them to the handler in
// creation order. Row locks are held for the whole batch, so concurrent relays
// never see the same message. Returns the number of published messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var messages []*OutboxMessage
		err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &messages, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
			       retry_count, last_error, next_retry_at, created_at, published_at
			FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, OutboxStatusPending, r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for _, msg := range messages {
			ok, err := r.processMessage(ctx, msg)
			if err != nil {
				return err
			}
			if ok {
				processed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}

// processMessage publishes msg and records the outcome. A handler failure is
// recorded on the row and reported as (false, nil).
func (r *OutboxRelay) processMessage(ctx context.Context, msg *OutboxMessage) (bool, error) {
	q := r.txManager.GetQuerier(ctx)

	if handleErr := r.handler.Handle(ctx, msg); handleErr != nil {
		retries := msg.RetryCount + 1
		status := OutboxStatusPending
		if retries >= r.cfg.MaxRetries {
			status = OutboxStatusFailed
		}
		nextRetry := time.Now().UTC().Add(time.Duration(retries) * r.cfg.RetryBackoff)

		logger.Warn(ctx, "outbox message delivery failed",
			"message_id", msg.ID,
			"event_type", msg.EventType,
			"retry", retries,
			"error", handleErr)

		if _, err := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = $1, last_error = $2, next_retry_at = $3, status = $4
			WHERE id = $5
		`, retries, handleErr.Error(), nextRetry, status, msg.ID); err != nil {
			return false, MapError(fmt.Errorf("update failed message: %w", err))
		}
		return false, nil
	}

	if _, err := q.Exec(ctx, `
		UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID); err != nil {
		return false, MapError(fmt.Errorf("mark message published: %w", err))
	}
	return true, nil
}

// MoveToDLQ moves failed messages to the dead letter queue.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at
		)
		INSERT INTO sys_outbox_dlq (id, aggregate_type, aggregate_id, event_type, payload, retry_count, failure_reason, created_at, failed_at)
		SELECT id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at, NOW()
		FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, MapError(fmt.Errorf("move to DLQ: %w", err))
	}
	return tag.RowsAffected(), nil
}

// PurgePublished deletes published messages older than retention.
func (r *OutboxRelay) PurgePublished(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, MapError(fmt.Errorf("purge published: %w", err))
	}
	return tag.RowsAffected(), nil
}

// Backlog returns the number of pending messages.
func (r *OutboxRelay) Backlog(ctx context.Context) (int64, error) {
	var n int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM sys_outbox WHERE status = $1`, OutboxStatusPending).Scan(&n); err != nil {
		return 0, MapError(fmt.Errorf("count backlog: %w", err))
	}
	return n, nil
}

// Package outbox queues confirmed contact batches for the campaign sender.
//
// The importer hands over only valid contacts; the outbox records them in
// Postgres where the downstream sender picks them up. Each confirmed import
// becomes one batch row plus one row per contact, written atomically.
package outbox

import (
	"context"
	"fmt"

	"github.com/campaignkit/contact-import/internal/contacts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS campaign_batches (
	id            UUID PRIMARY KEY,
	contact_count INTEGER NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaign_contacts (
	batch_id     UUID NOT NULL REFERENCES campaign_batches(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	name         TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	PRIMARY KEY (batch_id, position)
);
`

// Queue writes confirmed batches to Postgres. It implements the importer's
// Dispatcher interface.
type Queue struct {
	pool *pgxpool.Pool
}

// NewQueue creates a Queue backed by the given connection pool.
func NewQueue(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

// EnsureSchema creates the outbox tables if they do not exist.
func (q *Queue) EnsureSchema(ctx context.Context) error {
	if _, err := q.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create outbox schema: %w", err)
	}
	return nil
}

// Dispatch records the batch and its contacts in one transaction. Contact
// rows keep their position so the sender processes them in import order.
func (q *Queue) Dispatch(ctx context.Context, batchID uuid.UUID, batch []contacts.ContactImport) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin outbox transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	_, err = tx.Exec(ctx,
		`INSERT INTO campaign_batches (id, contact_count) VALUES ($1, $2)`,
		batchID, len(batch),
	)
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", batchID, err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"campaign_contacts"},
		[]string{"batch_id", "position", "name", "phone_number"},
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			return []any{batchID, i, batch[i].Name, batch[i].PhoneNumber}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy contacts for batch %s: %w", batchID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch %s: %w", batchID, err)
	}
	return nil
}

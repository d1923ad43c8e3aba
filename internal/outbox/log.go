package outbox

import (
	"context"

	"github.com/campaignkit/contact-import/internal/contacts"
	"github.com/campaignkit/contact-import/internal/logging"
	"github.com/google/uuid"
)

// LogDispatcher logs confirmed batches instead of persisting them. Used when
// DISPATCH_MODE is "log": local development and demos without a database.
type LogDispatcher struct{}

// Dispatch logs the batch summary and each contact at debug level.
func (LogDispatcher) Dispatch(ctx context.Context, batchID uuid.UUID, batch []contacts.ContactImport) error {
	logger := logging.WithFields(ctx, "batch_id", batchID.String())
	logger.Info("batch accepted", "contacts", len(batch))
	for i, c := range batch {
		logger.Debug("contact queued", "position", i, "name", c.Name, "phone", c.PhoneNumber)
	}
	return nil
}

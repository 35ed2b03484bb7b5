package driven

import (
	"context"

	"github.com/mgrist/acm-roster/internal/domain/model"
)

// RefreshJournal defines the driven port for the refresh audit log. It stores
// attempt metadata only, never member records.
type RefreshJournal interface {
	Record(ctx context.Context, rec model.RefreshRecord) error
	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.RefreshRecord, error)
}

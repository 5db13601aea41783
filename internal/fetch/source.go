// Package fetch retrieves raw per-user events from the analytics export API.
package fetch

import (
	"context"
	"time"

	"github.com/ampline/ampline/pkg/types"
)

// EventSource supplies a user's raw events within an inclusive date range.
// Implementations may return an empty sequence; downstream stages treat a
// failed source the same as a source with no data.
type EventSource interface {
	Events(ctx context.Context, userID string, start, end time.Time) ([]types.RawEvent, error)
}

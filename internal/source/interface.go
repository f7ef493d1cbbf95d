package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/timmy/matchsync/internal/domain"
)

// ErrRateLimited is returned when the remote API answers 429.
var ErrRateLimited = errors.New("rate limited by remote API")

// StatusError is a non-2xx answer other than 429.
type StatusError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote API %s: status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("remote API %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

// TransientError wraps transport failures and timeouts.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient fetch error: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether a later run can be expected to succeed where
// this call failed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// BulkFetcher retrieves parent payloads together with the requested
// sub-resources.
type BulkFetcher interface {
	// FetchBulk fetches up to MaxBulkSize parents in one logical call.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - ids: remote parent ids.
	//   - include: sub-resources to embed (events, lineups, ...).
	// Returns:
	//   - map[int64]domain.Payload: payload per returned id; ids the API did not
	//     return are absent rather than an error.
	//   - error: ErrRateLimited, *StatusError or *TransientError.
	FetchBulk(ctx context.Context, ids []int64, include []string) (map[int64]domain.Payload, error)

	// MaxBulkSize is the largest id list FetchBulk accepts.
	MaxBulkSize() int
}

// CollectionFetcher walks a paginated, non-parent-scoped collection.
type CollectionFetcher interface {
	// Pages calls fn once per page until the collection is exhausted or fn
	// returns an error.
	Pages(ctx context.Context, endpoint string, include []string, fn func(page []domain.Payload) error) error
}

// Limiter paces outgoing requests. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

package loader

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/space-sync/pkg/client"
	"github.com/Sternrassler/space-sync/pkg/pagination"
)

var (
	// ErrEmptyResult is reported when a fetch ends without any feature.
	ErrEmptyResult = errors.New("empty result: no features fetched")

	// ErrSessionActive is returned when starting while a session is running.
	ErrSessionActive = errors.New("fetch session already running")

	// ErrNoSession is returned by Restart and Wait before the first Start.
	ErrNoSession = errors.New("no fetch session")

	// ErrInvalidParams is returned for unusable session params.
	ErrInvalidParams = errors.New("invalid fetch params")
)

// fetchError marks a failure of the fetch step so the loop can hand it to
// the queue.
type fetchError struct {
	params pagination.Params
	err    error
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.params, e.err)
}

func (e *fetchError) Unwrap() error {
	return e.err
}

// retryable reports whether the queue may absorb a failed request. A tile or
// box without data is skipped; on the cursor a missing resource is terminal.
func retryable(p pagination.Params, err error) bool {
	if errors.Is(err, pagination.ErrNoData) {
		return p.Kind == pagination.KindTile || p.Kind == pagination.KindBBox
	}
	var ne *client.NetworkError
	return errors.As(err, &ne) && ne.Retryable()
}

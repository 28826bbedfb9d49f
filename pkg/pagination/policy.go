package pagination

import (
	"errors"
	"fmt"
	"time"
)

// ErrCursorStalled is returned when a page would not move the cursor
// forward. Fetching again would repeat the same request.
var ErrCursorStalled = errors.New("page does not advance the cursor")

// TokenPage is a page that reports the token of the following page.
type TokenPage interface {
	NextToken() (string, bool)
}

// Timestamped is an item that carries the timestamp a listing is ordered by.
type Timestamped interface {
	Timestamp() time.Time
}

// Step is the outcome of inspecting a resolved page.
type Step[C any] struct {
	// Cursor is the cursor for the next fetch.
	Cursor C
	// Exhausted means no further fetch may be issued.
	Exhausted bool
	// Deliver is false when the page must not be yielded to the caller.
	Deliver bool
	// Err, when set, ends the stream with Err as its final element. The
	// page is not delivered.
	Err error
}

// Policy derives the next cursor and the termination condition from a page.
// The set of policies is closed: TokenPolicy and TimestampPolicy.
type Policy[C, P any] interface {
	Step(cursor C, page P) Step[C]
	policy()
}

// TokenPolicy follows a server-issued page token. The stream is exhausted
// after the first page without a token; that page is still delivered.
type TokenPolicy[P TokenPage] struct{}

// Step implements Policy.
func (TokenPolicy[P]) Step(cursor string, page P) Step[string] {
	next, ok := page.NextToken()
	if !ok {
		return Step[string]{Cursor: cursor, Exhausted: true, Deliver: true}
	}
	return Step[string]{Cursor: next, Deliver: true}
}

func (TokenPolicy[P]) policy() {}

// TimestampIncrement is added to the last seen timestamp to form the next
// cursor, giving strictly-after semantics.
const TimestampIncrement = time.Millisecond

// TimestampPolicy derives the cursor from the last item of a page. An empty
// page exhausts the stream and is not delivered. A page whose last item does
// not lie past the cursor ends the stream with ErrCursorStalled, since the
// listing filter guarantees items at or after the cursor.
//
// Items sharing the exact timestamp of a page boundary are only handled
// correctly because TimestampIncrement is smaller than any real gap between
// events; there is no secondary tie-break key.
type TimestampPolicy[T Timestamped] struct{}

// Step implements Policy.
func (TimestampPolicy[T]) Step(cursor time.Time, page []T) Step[time.Time] {
	if len(page) == 0 {
		return Step[time.Time]{Cursor: cursor, Exhausted: true}
	}

	next := page[len(page)-1].Timestamp().Add(TimestampIncrement)
	if !next.After(cursor) {
		last := next.Add(-TimestampIncrement).UTC().Format(time.RFC3339Nano)
		err := fmt.Errorf("%w: last item at %s, cursor %s", ErrCursorStalled, last, cursor.UTC().Format(time.RFC3339Nano))
		return Step[time.Time]{Cursor: cursor, Exhausted: true, Err: err}
	}
	return Step[time.Time]{Cursor: next, Deliver: true}
}

func (TimestampPolicy[T]) policy() {}

package pagination

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/Sternrassler/fireblocks-client/pkg/types"
	"pgregory.net/rapid"
)

// drainRapid is drain for property tests, which report through *rapid.T.
func drainRapid[C, P any](t *rapid.T, s *Stream[C, P]) ([]P, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var pages []P
	for {
		page, ok, err := s.Next(ctx)
		if err != nil {
			return pages, err
		}
		if !ok {
			return pages, nil
		}
		pages = append(pages, page)
	}
}

func TestProperty_TokenStreamStopsAtMissingToken(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "pages")
		batch := uint16(rapid.IntRange(1, 500).Draw(t, "batch"))

		f := &fakeTransport{}
		for i := range n {
			next := ""
			if i < n-1 {
				next = "tok-" + strconv.Itoa(i)
			}
			f.vaults = append(f.vaults, vaultResponse{page: vaultPage(next, strconv.Itoa(i))})
		}
		// Anything past the missing token must never be requested.
		f.vaults = append(f.vaults, vaultResponse{page: vaultPage("bogus", "extra")})

		s := newTestClient(f).Vaults(batch)
		pages, err := drainRapid(t, s)
		if err != nil {
			t.Fatalf("drain: %v", err)
		}

		if len(pages) != n {
			t.Fatalf("got %d pages, want %d", len(pages), n)
		}
		if got := int(f.calls.Load()); got != n {
			t.Fatalf("fetch calls = %d, want %d", got, n)
		}
		if peak := f.maxInflight.Load(); peak > 1 {
			t.Fatalf("max in-flight fetches = %d", peak)
		}
		for i := 1; i < n; i++ {
			want := "tok-" + strconv.Itoa(i-1)
			if got := f.query(i).Get("after"); got != want {
				t.Fatalf("fetch %d after = %q, want %q", i, got, want)
			}
		}
		for i := range n {
			if got := f.query(i).Get("limit"); got != strconv.Itoa(int(batch)) {
				t.Fatalf("fetch %d limit = %q, want %d", i, got, batch)
			}
		}
	})
}

func TestProperty_TimestampCursorFollowsLastItem(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.Int64Range(0, 1<<40).Draw(t, "start")
		n := rapid.IntRange(0, 10).Draw(t, "pages")

		f := &fakeTransport{}
		last := make([]int64, 0, n)
		ts := start
		for p := range n {
			size := rapid.IntRange(1, 5).Draw(t, fmt.Sprintf("size%d", p))
			page := make([]types.Transaction, 0, size)
			for i := range size {
				// Equal timestamps inside a page are allowed.
				ts += rapid.Int64Range(0, 10_000).Draw(t, fmt.Sprintf("gap%d_%d", p, i))
				page = append(page, txAt(fmt.Sprintf("%d-%d", p, i), ts))
			}
			ts++
			last = append(last, page[len(page)-1].CreatedAt.Millis())
			f.txs = append(f.txs, txResponse{page: page})
		}
		f.txs = append(f.txs, txResponse{page: []types.Transaction{}})

		after := time.UnixMilli(start)
		s := newTestClient(f).TransactionsFromDestination(3, 100, &after)
		pages, err := drainRapid(t, s)
		if err != nil {
			t.Fatalf("drain: %v", err)
		}

		if len(pages) != n {
			t.Fatalf("got %d pages, want %d", len(pages), n)
		}
		if got := int(f.calls.Load()); got != n+1 {
			t.Fatalf("fetch calls = %d, want %d", got, n+1)
		}
		if peak := f.maxInflight.Load(); peak > 1 {
			t.Fatalf("max in-flight fetches = %d", peak)
		}

		if got := f.query(0).Get("after"); got != strconv.FormatInt(start, 10) {
			t.Fatalf("first after = %s, want %d", got, start)
		}
		prev := start
		for i := 1; i <= n; i++ {
			got, err := strconv.ParseInt(f.query(i).Get("after"), 10, 64)
			if err != nil {
				t.Fatalf("fetch %d after: %v", i, err)
			}
			if want := last[i-1] + 1; got != want {
				t.Fatalf("fetch %d after = %d, want %d", i, got, want)
			}
			if got < prev {
				t.Fatalf("cursor moved backwards: %d < %d", got, prev)
			}
			prev = got
		}
	})
}

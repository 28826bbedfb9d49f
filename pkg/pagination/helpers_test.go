package pagination

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/fireblocks-client/pkg/params"
	"github.com/Sternrassler/fireblocks-client/pkg/types"
	"github.com/rs/zerolog"
)

var errUnscripted = errors.New("fake transport: no more scripted responses")

type vaultResponse struct {
	page *types.VaultAccounts
	err  error
}

type txResponse struct {
	page []types.Transaction
	err  error
}

// fakeTransport replays scripted responses and records every query it
// receives. When gate is non-nil each call waits for a value on gate or
// for ctx to be cancelled.
type fakeTransport struct {
	mu        sync.Mutex
	vaults    []vaultResponse
	txs       []txResponse
	queries   []params.Query
	cancelled int

	gate chan struct{}

	calls       atomic.Int32
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (f *fakeTransport) Vaults(ctx context.Context, q params.Query) (*types.VaultAccounts, error) {
	if err := f.enter(ctx, q); err != nil {
		return nil, err
	}
	defer f.inflight.Add(-1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.vaults) == 0 {
		return nil, errUnscripted
	}
	r := f.vaults[0]
	f.vaults = f.vaults[1:]
	return r.page, r.err
}

func (f *fakeTransport) Transactions(ctx context.Context, q params.Query) ([]types.Transaction, error) {
	if err := f.enter(ctx, q); err != nil {
		return nil, err
	}
	defer f.inflight.Add(-1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.txs) == 0 {
		return nil, errUnscripted
	}
	r := f.txs[0]
	f.txs = f.txs[1:]
	return r.page, r.err
}

func (f *fakeTransport) enter(ctx context.Context, q params.Query) error {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	for {
		peak := f.maxInflight.Load()
		if n <= peak || f.maxInflight.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			f.inflight.Add(-1)
			f.mu.Lock()
			f.cancelled++
			f.mu.Unlock()
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeTransport) query(i int) params.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[i]
}

func (f *fakeTransport) cancelledCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func newTestClient(f *fakeTransport) *PagedClient {
	return NewPagedClient(f, WithLogger(zerolog.Nop()))
}

func vaultPage(next string, ids ...string) *types.VaultAccounts {
	page := &types.VaultAccounts{Paging: types.Paging{After: next}}
	for _, id := range ids {
		page.Accounts = append(page.Accounts, types.VaultAccount{ID: id})
	}
	return page
}

func txAt(id string, ms int64) types.Transaction {
	return types.Transaction{ID: id, CreatedAt: types.EpochFromMillis(ms)}
}

// drain pulls every element from s and returns the pages and the terminal
// error, if any.
func drain[C, P any](t *testing.T, s *Stream[C, P]) ([]P, error) {
	t.Helper()

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

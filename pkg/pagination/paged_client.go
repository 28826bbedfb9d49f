package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/fireblocks-client/pkg/logging"
	"github.com/Sternrassler/fireblocks-client/pkg/params"
	"github.com/Sternrassler/fireblocks-client/pkg/types"
	"github.com/rs/zerolog"
)

// Transport performs the listing calls. *client.Client implements it. A
// transport is shared between streams and is never mutated by them.
type Transport interface {
	Vaults(ctx context.Context, q params.Query) (*types.VaultAccounts, error)
	Transactions(ctx context.Context, q params.Query) ([]types.Transaction, error)
}

// VaultStream streams pages of vault accounts, following the server token.
type VaultStream = Stream[string, *types.VaultAccounts]

// TransactionStream streams pages of transactions in creation order.
type TransactionStream = Stream[time.Time, []types.Transaction]

// DefaultAfter is where transaction streams start when no instant is given.
var DefaultAfter = time.Date(2022, 4, 6, 0, 1, 1, 0, time.UTC)

// Role selects which side of a transfer a transaction stream filters on.
type Role int

const (
	// RoleSource matches transactions sent from the vault account.
	RoleSource Role = iota
	// RoleDestination matches transactions received by the vault account.
	RoleDestination
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleDestination:
		return "destination"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole parses "source" or "destination".
func ParseRole(s string) (Role, error) {
	switch s {
	case "source", "src":
		return RoleSource, nil
	case "destination", "dest", "dst":
		return RoleDestination, nil
	default:
		return 0, fmt.Errorf("unknown transfer role %q (want source or destination)", s)
	}
}

// PagedClient builds paged streams over a shared transport.
type PagedClient struct {
	transport Transport
	logger    zerolog.Logger
	ctx       context.Context
}

// Option configures a PagedClient.
type Option func(*PagedClient)

// WithLogger sets the logger streams derive theirs from.
func WithLogger(logger zerolog.Logger) Option {
	return func(pc *PagedClient) { pc.logger = logger }
}

// WithBaseContext sets the parent context of every fetch. Cancelling it
// cancels the in-flight fetch of every stream built by the client.
func WithBaseContext(ctx context.Context) Option {
	return func(pc *PagedClient) { pc.ctx = ctx }
}

// NewPagedClient creates a paged client over transport.
func NewPagedClient(transport Transport, opts ...Option) *PagedClient {
	if transport == nil {
		panic("transport cannot be nil")
	}

	pc := &PagedClient{
		transport: transport,
		logger:    logging.NewLogger("paged-client"),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(pc)
	}
	return pc
}

// Vaults streams all vault accounts, batchSize per page.
func (pc *PagedClient) Vaults(batchSize uint16) *VaultStream {
	return NewStream[string, *types.VaultAccounts](
		vaultSource{transport: pc.transport},
		TokenPolicy[*types.VaultAccounts]{},
		batchSize,
		"",
		pc.optionsFor("vaults")...,
	)
}

// TransactionsFromSource streams the transactions sent from a vault account,
// oldest first, starting at after (DefaultAfter when nil).
func (pc *PagedClient) TransactionsFromSource(vaultID int, batchSize uint16, after *time.Time) *TransactionStream {
	return pc.Transactions(RoleSource, vaultID, batchSize, after)
}

// TransactionsFromDestination streams the transactions received by a vault
// account. See TransactionsFromSource.
func (pc *PagedClient) TransactionsFromDestination(vaultID int, batchSize uint16, after *time.Time) *TransactionStream {
	return pc.Transactions(RoleDestination, vaultID, batchSize, after)
}

// Transactions streams the transactions of a vault account on the given side
// of the transfer.
func (pc *PagedClient) Transactions(role Role, vaultID int, batchSize uint16, after *time.Time) *TransactionStream {
	start := DefaultAfter
	if after != nil {
		start = *after
	}

	return NewStream[time.Time, []types.Transaction](
		transactionSource{transport: pc.transport, vaultID: vaultID, role: role},
		TimestampPolicy[types.Transaction]{},
		batchSize,
		start,
		pc.optionsFor("transactions_"+role.String())...,
	)
}

func (pc *PagedClient) optionsFor(name string) []StreamOption {
	return []StreamOption{
		WithName(name),
		WithStreamLogger(pc.logger),
		WithContext(pc.ctx),
	}
}

type vaultSource struct {
	transport Transport
}

func (s vaultSource) BuildParams(limit uint16, after string) (params.Query, error) {
	return params.NewVaultListBuilder().Limit(limit).After(after).Build()
}

func (s vaultSource) FetchPage(ctx context.Context, q params.Query) (*types.VaultAccounts, error) {
	return s.transport.Vaults(ctx, q)
}

func (vaultSource) Count(page *types.VaultAccounts) int {
	return page.Len()
}

type transactionSource struct {
	transport Transport
	vaultID   int
	role      Role
}

func (s transactionSource) BuildParams(limit uint16, after time.Time) (params.Query, error) {
	b := params.NewTransactionListBuilder().
		Limit(limit).
		SortAsc().
		OrderCreatedAt().
		After(after)

	if s.role == RoleSource {
		b.SourceID(s.vaultID)
	} else {
		b.DestinationID(s.vaultID)
	}
	return b.Build()
}

func (s transactionSource) FetchPage(ctx context.Context, q params.Query) ([]types.Transaction, error) {
	return s.transport.Transactions(ctx, q)
}

func (transactionSource) Count(page []types.Transaction) int {
	return len(page)
}

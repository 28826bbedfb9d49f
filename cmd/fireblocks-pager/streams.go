package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Sternrassler/fireblocks-client/pkg/pagination"
	"github.com/Sternrassler/fireblocks-client/pkg/types"
	"github.com/spf13/cobra"
)

func newVaultsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "vaults",
		Short: "Stream all vault accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := a.paged.Vaults(a.batch)
			return a.emit(cmd.Context(), cmd.OutOrStdout(), s.Name(), func(ctx context.Context, enc *json.Encoder) (int, error) {
				return drain(ctx, s, a.maxPages, func(p *types.VaultAccounts) []types.VaultAccount { return p.Accounts }, enc)
			})
		},
	}
}

func newVaultCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "vault <id>",
		Short: "Print a single vault account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := a.api.VaultAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(account)
		},
	}
}

func newTransactionsCmd(a *app) *cobra.Command {
	var (
		vaultID int
		role    string
		after   string
	)

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Stream the transactions of a vault account, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := pagination.ParseRole(role)
			if err != nil {
				return err
			}
			var start *time.Time
			if after != "" {
				t, err := parseInstant(after)
				if err != nil {
					return err
				}
				start = &t
			}

			s := a.paged.Transactions(r, vaultID, a.batch, start)
			return a.emit(cmd.Context(), cmd.OutOrStdout(), s.Name(), func(ctx context.Context, enc *json.Encoder) (int, error) {
				return drain(ctx, s, a.maxPages, func(p []types.Transaction) []types.Transaction { return p }, enc)
			})
		},
	}

	cmd.Flags().IntVar(&vaultID, "vault-id", 0, "vault account id")
	cmd.Flags().StringVar(&role, "role", "source", "side of the transfer the vault is on (source or destination)")
	cmd.Flags().StringVar(&after, "after", "", "start instant, RFC 3339 or milliseconds since the epoch (default 2022-04-06T00:01:01Z)")
	_ = cmd.MarkFlagRequired("vault-id")
	return cmd
}

// emit runs fn with a JSON lines encoder on out and logs a summary.
func (a *app) emit(ctx context.Context, out io.Writer, stream string, fn func(context.Context, *json.Encoder) (int, error)) error {
	start := time.Now()
	pages, err := fn(ctx, json.NewEncoder(out))

	ev := a.logger.Info()
	if err != nil {
		ev = a.logger.Error().Err(err)
	}
	ev.Str("stream", stream).
		Int("pages", pages).
		Dur("elapsed", time.Since(start)).
		Msg("Stream finished")
	return err
}

// drain writes every item of every page of s to enc, stopping after
// maxPages pages when maxPages > 0. It returns the number of pages written.
func drain[C, P, T any](ctx context.Context, s *pagination.Stream[C, P], maxPages int, items func(P) []T, enc *json.Encoder) (int, error) {
	pages := 0
	for page, err := range s.All(ctx) {
		if err != nil {
			return pages, err
		}
		for _, item := range items(page) {
			if err := enc.Encode(item); err != nil {
				return pages, fmt.Errorf("write output: %w", err)
			}
		}
		pages++
		if maxPages > 0 && pages >= maxPages {
			break
		}
	}
	return pages, nil
}

// parseInstant accepts RFC 3339 or integer milliseconds since the epoch.
func parseInstant(v string) (time.Time, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --after %q: want RFC 3339 or milliseconds", v)
	}
	return t, nil
}

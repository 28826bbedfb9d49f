package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sternrassler/fireblocks-client/pkg/pagination"
	"github.com/Sternrassler/fireblocks-client/pkg/params"
	"github.com/Sternrassler/fireblocks-client/pkg/types"
)

// API paths.
const (
	PathVaultAccountsPaged = "/v1/vault/accounts_paged"
	PathVaultAccount       = "/v1/vault/accounts/"
	PathTransactions       = "/v1/transactions"
)

var _ pagination.Transport = (*Client)(nil)

// Vaults fetches one page of vault accounts.
func (c *Client) Vaults(ctx context.Context, q params.Query) (*types.VaultAccounts, error) {
	var page types.VaultAccounts
	if err := c.getJSON(ctx, PathVaultAccountsPaged, q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Transactions fetches one page of transactions.
func (c *Client) Transactions(ctx context.Context, q params.Query) ([]types.Transaction, error) {
	var page []types.Transaction
	if err := c.getJSON(ctx, PathTransactions, q, &page); err != nil {
		return nil, err
	}
	return page, nil
}

// VaultAccount fetches a single vault account by id.
func (c *Client) VaultAccount(ctx context.Context, id string) (*types.VaultAccount, error) {
	if id == "" {
		return nil, fmt.Errorf("vault account id is required")
	}
	var account types.VaultAccount
	if err := c.getJSON(ctx, PathVaultAccount+url.PathEscape(id), nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// getJSON performs a GET and decodes a 2xx body into out. Any other status
// becomes an *APIError.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	resp, err := c.Get(ctx, path, q)
	if err != nil {
		return err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newAPIError(resp, c.classifyError(resp))
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

package types

import "github.com/shopspring/decimal"

// VaultAsset is the balance of one asset held in a vault account.
type VaultAsset struct {
	ID        string          `json:"id"`
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
	Frozen    decimal.Decimal `json:"frozen"`
	Locked    decimal.Decimal `json:"lockedAmount"`
	Staked    decimal.Decimal `json:"staked"`
}

// VaultAccount is a single vault account.
type VaultAccount struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	HiddenOnUI    bool         `json:"hiddenOnUI"`
	CustomerRefID string       `json:"customerRefId,omitempty"`
	AutoFuel      bool         `json:"autoFuel"`
	Assets        []VaultAsset `json:"assets"`
}

// Paging carries the opaque cursors of a paged vault listing.
// An empty After means there is no further page.
type Paging struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// VaultAccounts is one page of the paged vault account listing.
type VaultAccounts struct {
	Accounts    []VaultAccount `json:"accounts"`
	Paging      Paging         `json:"paging"`
	PreviousURL string         `json:"previousUrl,omitempty"`
	NextURL     string         `json:"nextUrl,omitempty"`
}

// NextToken reports the server-issued token for the following page.
func (v *VaultAccounts) NextToken() (string, bool) {
	if v == nil || v.Paging.After == "" {
		return "", false
	}
	return v.Paging.After, true
}

// Len returns the number of accounts on the page.
func (v *VaultAccounts) Len() int {
	if v == nil {
		return 0
	}
	return len(v.Accounts)
}

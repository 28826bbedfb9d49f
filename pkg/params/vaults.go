package params

import (
	"strconv"

	"github.com/shopspring/decimal"
)

type vaultListRequest struct {
	Limit              uint16 `query:"limit" validate:"min=1,max=500"`
	After              string `query:"after" validate:"excluded_with=Before"`
	Before             string `query:"before"`
	NamePrefix         string `query:"namePrefix" validate:"max=100"`
	NameSuffix         string `query:"nameSuffix" validate:"max=100"`
	AssetID            string `query:"assetId"`
	MinAmountThreshold string `query:"minAmountThreshold"`
	OrderBy            string `query:"orderBy" validate:"omitempty,oneof=ASC DESC"`
}

// VaultListBuilder builds the parameters of the paged vault account listing.
type VaultListBuilder struct {
	req vaultListRequest
}

// NewVaultListBuilder returns a builder with no limit set.
func NewVaultListBuilder() *VaultListBuilder {
	return &VaultListBuilder{}
}

// Limit sets the page size.
func (b *VaultListBuilder) Limit(n uint16) *VaultListBuilder {
	b.req.Limit = n
	return b
}

// After sets the page token returned by the previous page. The empty token
// requests the first page.
func (b *VaultListBuilder) After(token string) *VaultListBuilder {
	b.req.After = token
	return b
}

// Before pages backwards from the given token.
func (b *VaultListBuilder) Before(token string) *VaultListBuilder {
	b.req.Before = token
	return b
}

// NamePrefix filters accounts whose name starts with prefix.
func (b *VaultListBuilder) NamePrefix(prefix string) *VaultListBuilder {
	b.req.NamePrefix = prefix
	return b
}

// NameSuffix filters accounts whose name ends with suffix.
func (b *VaultListBuilder) NameSuffix(suffix string) *VaultListBuilder {
	b.req.NameSuffix = suffix
	return b
}

// AssetID filters accounts holding the asset.
func (b *VaultListBuilder) AssetID(id string) *VaultListBuilder {
	b.req.AssetID = id
	return b
}

// MinAmountThreshold filters accounts whose balance of AssetID is at least amount.
func (b *VaultListBuilder) MinAmountThreshold(amount decimal.Decimal) *VaultListBuilder {
	b.req.MinAmountThreshold = amount.String()
	return b
}

// OrderBy sets the sort direction (SortAsc or SortDesc).
func (b *VaultListBuilder) OrderBy(dir string) *VaultListBuilder {
	b.req.OrderBy = dir
	return b
}

// Build validates the parameters and serializes them.
func (b *VaultListBuilder) Build() (Query, error) {
	if err := getValidator().Struct(b.req); err != nil {
		return nil, toValidationError("vault accounts", err)
	}

	q := Query{}
	q.Set("limit", strconv.Itoa(int(b.req.Limit)))
	setIf(q, "after", b.req.After)
	setIf(q, "before", b.req.Before)
	setIf(q, "namePrefix", b.req.NamePrefix)
	setIf(q, "nameSuffix", b.req.NameSuffix)
	setIf(q, "assetId", b.req.AssetID)
	setIf(q, "minAmountThreshold", b.req.MinAmountThreshold)
	setIf(q, "orderBy", b.req.OrderBy)
	return q, nil
}

func setIf(q Query, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

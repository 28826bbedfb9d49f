package params

import (
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/fireblocks-client/pkg/types"
)

// Transaction listing order fields.
const (
	OrderCreatedAt   = "createdAt"
	OrderLastUpdated = "lastUpdated"
)

type transactionListRequest struct {
	Limit      uint16   `query:"limit" validate:"min=1,max=500"`
	After      *int64   `query:"after" validate:"omitempty,min=0"`
	Before     *int64   `query:"before" validate:"omitempty,min=0"`
	Sort       string   `query:"sort" validate:"omitempty,oneof=ASC DESC"`
	OrderBy    string   `query:"orderBy" validate:"omitempty,oneof=createdAt lastUpdated"`
	SourceID   *int     `query:"sourceId" validate:"omitempty,min=0"`
	DestID     *int     `query:"destId" validate:"omitempty,min=0"`
	SourceType string   `query:"sourceType"`
	DestType   string   `query:"destType"`
	Status     []string `query:"status" validate:"dive,oneof=SUBMITTED QUEUED PENDING_AUTHORIZATION PENDING_SIGNATURE BROADCASTING CONFIRMING COMPLETED CANCELLED REJECTED BLOCKED FAILED"`
	Assets     []string `query:"assets"`
}

// TransactionListBuilder builds the parameters of the transaction listing.
type TransactionListBuilder struct {
	req transactionListRequest
}

// NewTransactionListBuilder returns a builder with no limit set.
func NewTransactionListBuilder() *TransactionListBuilder {
	return &TransactionListBuilder{}
}

// Limit sets the page size.
func (b *TransactionListBuilder) Limit(n uint16) *TransactionListBuilder {
	b.req.Limit = n
	return b
}

// After restricts the listing to transactions created at or after t.
func (b *TransactionListBuilder) After(t time.Time) *TransactionListBuilder {
	ms := t.UnixMilli()
	b.req.After = &ms
	return b
}

// Before restricts the listing to transactions created before t.
func (b *TransactionListBuilder) Before(t time.Time) *TransactionListBuilder {
	ms := t.UnixMilli()
	b.req.Before = &ms
	return b
}

// SortAsc orders results oldest first.
func (b *TransactionListBuilder) SortAsc() *TransactionListBuilder {
	b.req.Sort = SortAsc
	return b
}

// SortDesc orders results newest first.
func (b *TransactionListBuilder) SortDesc() *TransactionListBuilder {
	b.req.Sort = SortDesc
	return b
}

// OrderCreatedAt orders results by creation time.
func (b *TransactionListBuilder) OrderCreatedAt() *TransactionListBuilder {
	b.req.OrderBy = OrderCreatedAt
	return b
}

// OrderLastUpdated orders results by last update time.
func (b *TransactionListBuilder) OrderLastUpdated() *TransactionListBuilder {
	b.req.OrderBy = OrderLastUpdated
	return b
}

// SourceID filters by source vault account.
func (b *TransactionListBuilder) SourceID(vaultID int) *TransactionListBuilder {
	b.req.SourceID = &vaultID
	if b.req.SourceType == "" {
		b.req.SourceType = string(types.PeerVaultAccount)
	}
	return b
}

// DestinationID filters by destination vault account.
func (b *TransactionListBuilder) DestinationID(vaultID int) *TransactionListBuilder {
	b.req.DestID = &vaultID
	if b.req.DestType == "" {
		b.req.DestType = string(types.PeerVaultAccount)
	}
	return b
}

// SourceType overrides the source peer type.
func (b *TransactionListBuilder) SourceType(t types.PeerType) *TransactionListBuilder {
	b.req.SourceType = string(t)
	return b
}

// DestinationType overrides the destination peer type.
func (b *TransactionListBuilder) DestinationType(t types.PeerType) *TransactionListBuilder {
	b.req.DestType = string(t)
	return b
}

// Status filters by one or more statuses.
func (b *TransactionListBuilder) Status(statuses ...types.TransactionStatus) *TransactionListBuilder {
	for _, s := range statuses {
		b.req.Status = append(b.req.Status, string(s))
	}
	return b
}

// Assets filters by asset IDs.
func (b *TransactionListBuilder) Assets(ids ...string) *TransactionListBuilder {
	b.req.Assets = append(b.req.Assets, ids...)
	return b
}

// Build validates the parameters and serializes them.
func (b *TransactionListBuilder) Build() (Query, error) {
	if err := getValidator().Struct(b.req); err != nil {
		return nil, toValidationError("transactions", err)
	}
	if b.req.After != nil && b.req.Before != nil && *b.req.Before <= *b.req.After {
		return nil, &ValidationError{
			Request: "transactions",
			Fields:  []FieldError{{Field: "before", Message: "must be after after"}},
		}
	}

	q := Query{}
	q.Set("limit", strconv.Itoa(int(b.req.Limit)))
	if b.req.After != nil {
		q.Set("after", strconv.FormatInt(*b.req.After, 10))
	}
	if b.req.Before != nil {
		q.Set("before", strconv.FormatInt(*b.req.Before, 10))
	}
	setIf(q, "sort", b.req.Sort)
	setIf(q, "orderBy", b.req.OrderBy)
	if b.req.SourceID != nil {
		q.Set("sourceId", strconv.Itoa(*b.req.SourceID))
		setIf(q, "sourceType", b.req.SourceType)
	}
	if b.req.DestID != nil {
		q.Set("destId", strconv.Itoa(*b.req.DestID))
		setIf(q, "destType", b.req.DestType)
	}
	setIf(q, "status", strings.Join(b.req.Status, ","))
	setIf(q, "assets", strings.Join(b.req.Assets, ","))
	return q, nil
}

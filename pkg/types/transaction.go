package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle status of a transaction.
type TransactionStatus string

const (
	StatusSubmitted            TransactionStatus = "SUBMITTED"
	StatusQueued               TransactionStatus = "QUEUED"
	StatusPendingAuthorization TransactionStatus = "PENDING_AUTHORIZATION"
	StatusPendingSignature     TransactionStatus = "PENDING_SIGNATURE"
	StatusBroadcasting         TransactionStatus = "BROADCASTING"
	StatusConfirming           TransactionStatus = "CONFIRMING"
	StatusCompleted            TransactionStatus = "COMPLETED"
	StatusCancelled            TransactionStatus = "CANCELLED"
	StatusRejected             TransactionStatus = "REJECTED"
	StatusBlocked              TransactionStatus = "BLOCKED"
	StatusFailed               TransactionStatus = "FAILED"
)

// IsFinal reports whether the status can no longer change.
func (s TransactionStatus) IsFinal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusBlocked, StatusFailed:
		return true
	default:
		return false
	}
}

// PeerType identifies the kind of party on one side of a transfer.
type PeerType string

const (
	PeerVaultAccount    PeerType = "VAULT_ACCOUNT"
	PeerExchangeAccount PeerType = "EXCHANGE_ACCOUNT"
	PeerInternalWallet  PeerType = "INTERNAL_WALLET"
	PeerExternalWallet  PeerType = "EXTERNAL_WALLET"
	PeerOneTimeAddress  PeerType = "ONE_TIME_ADDRESS"
	PeerUnknown         PeerType = "UNKNOWN"
)

// TransferPeer is the source or destination of a transaction.
type TransferPeer struct {
	Type    PeerType `json:"type"`
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name,omitempty"`
	SubType string   `json:"subType,omitempty"`
}

// Transaction is a single transfer as reported by the transaction listing.
type Transaction struct {
	ID                 string            `json:"id"`
	AssetID            string            `json:"assetId"`
	Status             TransactionStatus `json:"status"`
	SubStatus          string            `json:"subStatus,omitempty"`
	Operation          string            `json:"operation,omitempty"`
	Source             TransferPeer      `json:"source"`
	Destination        TransferPeer      `json:"destination"`
	Amount             decimal.Decimal   `json:"amount"`
	NetAmount          decimal.Decimal   `json:"netAmount"`
	Fee                decimal.Decimal   `json:"fee"`
	FeeCurrency        string            `json:"feeCurrency,omitempty"`
	TxHash             string            `json:"txHash,omitempty"`
	Note               string            `json:"note,omitempty"`
	CreatedAt          Epoch             `json:"createdAt"`
	LastUpdated        Epoch             `json:"lastUpdated"`
	CreatedBy          string            `json:"createdBy,omitempty"`
	ExternalTxID       string            `json:"externalTxId,omitempty"`
	DestinationAddress string            `json:"destinationAddress,omitempty"`
}

// Timestamp returns the creation time the transaction listing is ordered by.
func (t Transaction) Timestamp() time.Time {
	return t.CreatedAt.Time
}

package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger event types. One event per observable state mutation; together the
// stream is sufficient to reconstruct every product's state from history.
const (
	EventProductInitialized = "product.initialized"
	EventQuoteSet           = "quote.set"
	EventDeposit            = "deposit"
	EventSharesMinted       = "shares.minted"
	EventSharesBurned       = "shares.burned"
	EventWithdrawal         = "withdrawal"
	EventRedemptionFunded   = "redemption.funded"
	EventAdminChanged       = "admin.changed"
	EventTreasuryChanged    = "treasury.changed"
	EventStoppedChanged     = "stopped.changed"
)

// LedgerEvent is the canonical record of a single vault state mutation.
// Fields that do not apply to a given type are zero-valued and omitted.
type LedgerEvent struct {
	Type      string    `json:"type"`
	ProductID uint64    `json:"product_id"`
	Actor     Account   `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Ledger time (unix seconds) as observed by the vault clock when the
	// mutation committed. Distinct from Timestamp, which is wall-clock
	// emission time.
	LedgerTime int64 `json:"ledger_time"`

	Amount  decimal.Decimal `json:"amount,omitempty"`
	Shares  decimal.Decimal `json:"shares,omitempty"`
	Quote   decimal.Decimal `json:"quote,omitempty"`
	Account Account         `json:"account,omitempty"`

	ShareAccount    Account `json:"share_account,omitempty"`
	StartTime       int64   `json:"start_time,omitempty"`
	EndTime         int64   `json:"end_time,omitempty"`
	QuoteExpiration int64   `json:"quote_expiration,omitempty"`
	Stopped         bool    `json:"stopped,omitempty"`

	// Snapshot of the product after the mutation committed. Carried in-process
	// for persistence subscribers; never serialized onto the wire.
	Snapshot *Product `json:"-"`
}

// Envelope is the canonical NATS message wrapper shared with downstream
// consumers.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

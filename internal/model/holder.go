package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holder is one entry of a token's top-holder list.
type Holder struct {
	Address    string          `json:"address"`
	Balance    decimal.Decimal `json:"balance"`
	Percentage float64         `json:"percentage"`
}

// Transfer is a single token movement between two wallets.
type Transfer struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	TxHash    string          `json:"tx_hash,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

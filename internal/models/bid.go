package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid is one recorded bid attempt. Bids are immutable once created except
// for IsWinning, which is flipped to false when a later bid supersedes it.
type Bid struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auctionId"`
	BidderID  string          `json:"bidderId"`
	Amount    decimal.Decimal `json:"amount"`
	PlacedAt  time.Time       `json:"placedAt"`
	IsValid   bool            `json:"isValid"`
	IsWinning bool            `json:"isWinning"`
}

// BidRequest is the body of a place-bid call.
type BidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BidResult is returned to the caller after a successful bid so it can
// resynchronize its local countdown with the possibly extended end time.
type BidResult struct {
	Success    bool      `json:"success"`
	NewEndTime time.Time `json:"newEndTime"`
}

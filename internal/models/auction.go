package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AuctionStatus string

const (
	DraftAuction     AuctionStatus = "draft"     // approved but not started yet
	ActiveAuction    AuctionStatus = "active"    // open for bidding
	EndedAuction     AuctionStatus = "ended"     // closed with no bids
	CancelledAuction AuctionStatus = "cancelled" // archived by an admin
	CompletedAuction AuctionStatus = "completed" // closed with a winner
)

// IsTerminal reports whether the status admits no further transitions.
func (s AuctionStatus) IsTerminal() bool {
	return s == EndedAuction || s == CancelledAuction || s == CompletedAuction
}

// Auction is one item up for time-boxed competitive bidding.
// EndTime is mutable while the auction is active: every valid bid on a
// non-fixed auction may push it forward (popcorn bidding).
type Auction struct {
	ID               string          `json:"id"`
	ArtPieceID       string          `json:"artPieceId"`
	AuctioneerID     string          `json:"auctioneerId"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	StartingPrice    decimal.Decimal `json:"startingPrice"`
	CurrentBid       decimal.Decimal `json:"currentBid"`
	CurrentBidderID  *string         `json:"currentBidderId,omitempty"`
	Status           AuctionStatus   `json:"status"`
	StartTime        time.Time       `json:"startTime"`
	EndTime          time.Time       `json:"endTime"`
	IsFixedEndTime   bool            `json:"isFixedEndTime"`
	BidCount         int             `json:"bidCount"`
	IsLocked         bool            `json:"isLocked"`
	FlaggedCount     int             `json:"flaggedCount"`
	WinnerAccepted   *bool           `json:"winnerAccepted,omitempty"`
	PaymentDeadline  *time.Time      `json:"paymentDeadline,omitempty"`
	ShippingDeadline *time.Time      `json:"shippingDeadline,omitempty"`
	RequestID        *string         `json:"auctionRequestId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

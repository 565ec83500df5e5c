package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	PendingTransaction   TransactionStatus = "pending"
	PaidTransaction      TransactionStatus = "paid"
	ShippedTransaction   TransactionStatus = "shipped"
	CompletedTransaction TransactionStatus = "completed"
	DisputedTransaction  TransactionStatus = "disputed"
)

// Transaction records the sale resulting from a completed auction.
type Transaction struct {
	ID             string            `json:"id"`
	AuctionID      string            `json:"auctionId"`
	BuyerID        string            `json:"buyerId"`
	SellerID       string            `json:"sellerId"`
	Amount         decimal.Decimal   `json:"amount"`
	Status         TransactionStatus `json:"status"`
	PaymentMethod  *string           `json:"paymentMethod,omitempty"`
	TrackingNumber *string           `json:"trackingNumber,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

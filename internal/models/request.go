package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	PendingRequest  RequestStatus = "pending"
	ApprovedRequest RequestStatus = "approved"
	RejectedRequest RequestStatus = "rejected"
)

// AuctionRequest is a user's submission of an item for auction, waiting for
// an admin to approve it with a schedule or reject it.
type AuctionRequest struct {
	ID          string        `json:"id"`
	ArtPieceID  string        `json:"artPieceId"`
	RequesterID string        `json:"requesterId"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      RequestStatus `json:"status"`
	AdminNotes  *string       `json:"adminNotes,omitempty"`
	ApprovedBy  *string       `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time    `json:"approvedAt,omitempty"`
	RejectedBy  *string       `json:"rejectedBy,omitempty"`
	RejectedAt  *time.Time    `json:"rejectedAt,omitempty"`
	AuctionID   *string       `json:"auctionId,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// ApproveRequest is the body of an approve-request call.
type ApproveRequest struct {
	StartingPrice  decimal.Decimal `json:"startingPrice"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        time.Time       `json:"endTime"`
	IsFixedEndTime bool            `json:"isFixedEndTime"`
	AdminNotes     string          `json:"adminNotes"`
}

// RejectRequest is the body of a reject-request call.
type RejectRequest struct {
	AdminNotes string `json:"adminNotes"`
}

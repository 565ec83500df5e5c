package models

import "time"

type NotificationType string

const (
	BidPlacedNotification       NotificationType = "bid_placed"
	BidOutbidNotification       NotificationType = "bid_outbid"
	AuctionWonNotification      NotificationType = "auction_won"
	AuctionStartedNotification  NotificationType = "auction_started"
	AuctionEndedNotification    NotificationType = "auction_ended"
	RequestApprovedNotification NotificationType = "auction_request_approved"
	RequestRejectedNotification NotificationType = "auction_request_rejected"
)

type NotificationPriority string

const (
	LowPriority    NotificationPriority = "low"
	MediumPriority NotificationPriority = "medium"
	HighPriority   NotificationPriority = "high"
)

// Notification is a stored in-app message for a user. Inserts are
// best-effort from the caller's point of view: a failed insert must never
// roll back the bid or transition it accompanies.
type Notification struct {
	ID        string               `json:"id"`
	UserID    string               `json:"userId"`
	Type      NotificationType     `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	AuctionID *string              `json:"auctionId,omitempty"`
	RequestID *string              `json:"auctionRequestId,omitempty"`
	IsRead    bool                 `json:"isRead"`
	Priority  NotificationPriority `json:"priority"`
	CreatedAt time.Time            `json:"createdAt"`
}

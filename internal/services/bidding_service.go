package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/piggybanx/auction-service/internal/events"
	"github.com/piggybanx/auction-service/internal/models"
	"github.com/piggybanx/auction-service/internal/repository"

	"github.com/shopspring/decimal"
)

// popcornExtension is the anti-snipe window: every valid bid on a non-fixed
// auction keeps the end time at least this far in the future.
const popcornExtension = 5 * time.Minute

// Bid validation failures, one per condition so the UI can surface the
// message directly.
var (
	ErrBlacklisted      = errors.New("User is blacklisted and cannot place bids")
	ErrAuctionNotFound  = errors.New("Auction not found")
	ErrAuctionNotActive = errors.New("Auction is not active")
	ErrAuctionLocked    = errors.New("Auction is temporarily locked")
	ErrOwnAuctionBid    = errors.New("Cannot bid on your own auction")
	ErrBidTooLow        = errors.New("Bid must be higher than current bid")
	ErrAuctionExpired   = errors.New("Auction has ended")
)

// EventPublisher fans committed state changes out to interested consumers.
// Implementations must be best-effort and non-blocking.
type EventPublisher interface {
	PublishBidEvent(event events.BidEvent)
	PublishLifecycleEvent(event events.LifecycleEvent)
	PublishWinnerEmail(auctionID string)
}

// BiddingService enforces bid validity and serializes concurrent bid
// attempts per auction.
type BiddingService struct {
	auctions  repository.AuctionRepository
	blacklist repository.BlacklistRepository
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time
}

func NewBiddingService(
	auctions repository.AuctionRepository,
	blacklist repository.BlacklistRepository,
	publisher EventPublisher,
	logger *log.Logger,
) *BiddingService {
	return &BiddingService{
		auctions:  auctions,
		blacklist: blacklist,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// PlaceBid validates and records one bid attempt. On success it returns the
// possibly extended end time so the caller can resynchronize its countdown.
//
// The auction's is_locked flag is acquired with a compare-and-swap before
// the bid transaction and is released on every exit path after acquisition:
// inside the transaction on success, explicitly on failure. The pre-lock
// checks run against a snapshot and exist only to reject cheaply; the
// checks that depend on mutable state are repeated against a fresh read
// after the lock is held, because a competing bid may commit between the
// snapshot and the CAS.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*models.BidResult, error) {
	blacklisted, err := s.blacklist.IsBlacklisted(ctx, bidderID)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, ErrBlacklisted
	}

	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, ErrAuctionNotFound
	}
	if auction.Status != models.ActiveAuction {
		return nil, ErrAuctionNotActive
	}
	if auction.IsLocked {
		return nil, ErrAuctionLocked
	}
	if auction.AuctioneerID == bidderID {
		return nil, ErrOwnAuctionBid
	}
	if !amount.GreaterThan(auction.CurrentBid) {
		return nil, ErrBidTooLow
	}

	now := s.now().UTC()
	if now.After(auction.EndTime) {
		// The lifecycle controller should already have ended the auction;
		// re-check here to close the race.
		return nil, ErrAuctionExpired
	}

	acquired, err := s.auctions.AcquireBidLock(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrAuctionLocked
	}
	locked := true
	defer func() {
		if !locked {
			return
		}
		if releaseErr := s.auctions.ReleaseBidLock(ctx, auctionID); releaseErr != nil {
			s.logger.Printf("bidding: failed to release lock for auction %s: %v", auctionID, releaseErr)
		}
	}()

	// Holding the lock, re-read the row and repeat the checks against
	// current_bid and end_time. Without this, the loser of a race could
	// commit a lower bid over the winner's.
	auction, err = s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, ErrAuctionNotFound
	}
	if auction.Status != models.ActiveAuction {
		return nil, ErrAuctionNotActive
	}
	if !amount.GreaterThan(auction.CurrentBid) {
		return nil, ErrBidTooLow
	}
	if now.After(auction.EndTime) {
		return nil, ErrAuctionExpired
	}

	newEndTime := auction.EndTime
	if !auction.IsFixedEndTime {
		if extended := now.Add(popcornExtension); extended.After(newEndTime) {
			newEndTime = extended
		}
	}

	params := repository.RecordBidParams{
		AuctionID:    auctionID,
		BidderID:     bidderID,
		Amount:       amount,
		PlacedAt:     now,
		NewEndTime:   newEndTime,
		OwnerID:      auction.AuctioneerID,
		Title:        auction.Title,
		PrevBidderID: auction.CurrentBidderID,
		PrevAmount:   auction.CurrentBid,
	}
	if _, err = s.auctions.RecordBid(ctx, params); err != nil {
		return nil, err
	}
	locked = false // RecordBid cleared the flag in the same transaction

	s.publisher.PublishBidEvent(events.BidEvent{
		AuctionID:  auctionID,
		BidderID:   bidderID,
		Amount:     amount,
		BidCount:   auction.BidCount + 1,
		NewEndTime: newEndTime,
		Timestamp:  now,
	})

	return &models.BidResult{Success: true, NewEndTime: newEndTime}, nil
}

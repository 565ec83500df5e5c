package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/piggybanx/auction-service/internal/events"
	"github.com/piggybanx/auction-service/internal/models"
	"github.com/piggybanx/auction-service/internal/repository"
	"github.com/piggybanx/auction-service/internal/scheduler"

	"github.com/google/uuid"
)

const (
	paymentWindow  = 7 * 24 * time.Hour
	shippingWindow = 14 * 24 * time.Hour
)

var (
	ErrRequestNotFound      = errors.New("Auction request not found")
	ErrRequestNotPending    = errors.New("Only pending requests can be processed")
	ErrAuctionNotArchivable = errors.New("Only draft or active auctions can be archived")
	ErrAuctionNotDeletable  = errors.New("Only ended or cancelled auctions can be deleted")
)

// LifecycleService moves auctions through draft, active, and the terminal
// states. Transitions are invoked by scheduled callbacks, by the
// reconciliation sweep, and by admin operations; every transition treats an
// unmet precondition as a silent no-op so duplicate or stale invocations are
// harmless.
type LifecycleService struct {
	auctions  repository.AuctionRepository
	requests  repository.RequestRepository
	sched     scheduler.Scheduler
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time
}

func NewLifecycleService(
	auctions repository.AuctionRepository,
	requests repository.RequestRepository,
	sched scheduler.Scheduler,
	publisher EventPublisher,
	logger *log.Logger,
) *LifecycleService {
	return &LifecycleService{
		auctions:  auctions,
		requests:  requests,
		sched:     sched,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleScheduled dispatches a scheduler callback to the matching
// transition. Bound to the timer scheduler at startup.
func (s *LifecycleService) HandleScheduled(ctx context.Context, op scheduler.Operation, auctionID string) error {
	var err error
	switch op {
	case scheduler.StartAuction:
		_, err = s.TransitionStart(ctx, auctionID)
	case scheduler.EndAuction:
		_, err = s.TransitionEnd(ctx, auctionID)
	default:
		err = fmt.Errorf("unknown scheduled operation %q", op)
	}
	return err
}

// TransitionStart activates a draft auction. Invocations for auctions that
// are no longer drafts are no-ops; the returned bool reports whether the
// transition applied.
func (s *LifecycleService) TransitionStart(ctx context.Context, auctionID string) (bool, error) {
	applied, err := s.auctions.ActivateAuction(ctx, auctionID)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	s.publisher.PublishLifecycleEvent(events.LifecycleEvent{
		AuctionID: auctionID,
		Status:    string(models.ActiveAuction),
		Timestamp: s.now().UTC(),
	})

	// Approval only schedules the start callback for future-dated auctions.
	// Scheduling the end here keeps the auction from having to wait for the
	// sweep once its true end time passes.
	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil || auction == nil {
		if err != nil {
			s.logger.Printf("lifecycle: started auction %s but could not schedule its end: %v", auctionID, err)
		}
		return true, nil
	}
	s.sched.ScheduleAfter(auction.EndTime.Sub(s.now()), scheduler.EndAuction, auctionID)
	return true, nil
}

// TransitionEnd closes an active auction: completed with an auto-accepted
// winner when a current bidder exists, ended otherwise. Invocations for
// auctions that are not active are no-ops, so a duplicate callback racing
// the sweep cannot double-apply the outcome. The returned bool reports
// whether this invocation applied the transition.
func (s *LifecycleService) TransitionEnd(ctx context.Context, auctionID string) (bool, error) {
	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return false, err
	}
	if auction == nil || auction.Status != models.ActiveAuction {
		return false, nil
	}

	now := s.now().UTC()
	if auction.CurrentBidderID != nil {
		applied, err := s.auctions.CompleteAuction(ctx, repository.CompleteAuctionParams{
			AuctionID:        auctionID,
			WinnerID:         *auction.CurrentBidderID,
			SellerID:         auction.AuctioneerID,
			Amount:           auction.CurrentBid,
			Title:            auction.Title,
			PaymentDeadline:  now.Add(paymentWindow),
			ShippingDeadline: now.Add(shippingWindow),
		})
		if err != nil || !applied {
			return false, err
		}
		s.publisher.PublishWinnerEmail(auctionID)
		s.publisher.PublishLifecycleEvent(events.LifecycleEvent{
			AuctionID: auctionID,
			Status:    string(models.CompletedAuction),
			Timestamp: now,
		})
		return true, nil
	}

	applied, err := s.auctions.EndWithoutBids(ctx, auctionID, auction.AuctioneerID, auction.Title)
	if err != nil || !applied {
		return false, err
	}
	s.publisher.PublishLifecycleEvent(events.LifecycleEvent{
		AuctionID: auctionID,
		Status:    string(models.EndedAuction),
		Timestamp: now,
	})
	return true, nil
}

// CreateAuctionRequest records a user's submission for admin review.
func (s *LifecycleService) CreateAuctionRequest(ctx context.Context, requesterID, artPieceID, title, description string) (*models.AuctionRequest, error) {
	if title == "" || description == "" || artPieceID == "" {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "missing required fields")
	}
	request := &models.AuctionRequest{
		ID:          uuid.New().String(),
		ArtPieceID:  artPieceID,
		RequesterID: requesterID,
		Title:       title,
		Description: description,
		Status:      models.PendingRequest,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.requests.CreateRequest(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

// ApproveAndScheduleAuction turns a pending request into a scheduled
// auction. Exactly one callback is scheduled: the end when the auction
// starts immediately, the start otherwise (TransitionStart schedules the end
// for the latter case).
func (s *LifecycleService) ApproveAndScheduleAuction(ctx context.Context, requestID, adminID string, approval models.ApproveRequest) (string, error) {
	request, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return "", err
	}
	if request == nil {
		return "", ErrRequestNotFound
	}
	if request.Status != models.PendingRequest {
		return "", ErrRequestNotPending
	}

	now := s.now().UTC()
	startsImmediately := !approval.StartTime.After(now)
	status := models.DraftAuction
	if startsImmediately {
		status = models.ActiveAuction
	}

	auction := &models.Auction{
		ID:             uuid.New().String(),
		ArtPieceID:     request.ArtPieceID,
		AuctioneerID:   request.RequesterID,
		Title:          request.Title,
		Description:    request.Description,
		StartingPrice:  approval.StartingPrice,
		CurrentBid:     approval.StartingPrice,
		Status:         status,
		StartTime:      approval.StartTime,
		EndTime:        approval.EndTime,
		IsFixedEndTime: approval.IsFixedEndTime,
		RequestID:      &requestID,
		CreatedAt:      now,
	}

	applied, err := s.requests.ApproveRequest(ctx, repository.ApproveRequestParams{
		RequestID:  requestID,
		AdminID:    adminID,
		AdminNotes: approval.AdminNotes,
		Auction:    auction,
		ApprovedAt: now,
	})
	if err != nil {
		return "", err
	}
	if !applied {
		// A concurrent decision won the pending guard.
		return "", ErrRequestNotPending
	}

	if startsImmediately {
		s.sched.ScheduleAfter(approval.EndTime.Sub(now), scheduler.EndAuction, auction.ID)
	} else {
		s.sched.ScheduleAfter(approval.StartTime.Sub(now), scheduler.StartAuction, auction.ID)
	}
	return auction.ID, nil
}

// RejectAuctionRequest declines a pending request with a reason.
func (s *LifecycleService) RejectAuctionRequest(ctx context.Context, requestID, adminID, adminNotes string) error {
	applied, err := s.requests.RejectRequest(ctx, repository.RejectRequestParams{
		RequestID:  requestID,
		AdminID:    adminID,
		AdminNotes: adminNotes,
		RejectedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	if !applied {
		request, err := s.requests.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if request == nil {
			return ErrRequestNotFound
		}
		return ErrRequestNotPending
	}
	return nil
}

// ArchiveAuction cancels a draft or active auction. Any callback already
// scheduled for it will fire and no-op.
func (s *LifecycleService) ArchiveAuction(ctx context.Context, auctionID string) error {
	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if auction == nil {
		return ErrAuctionNotFound
	}

	applied, err := s.auctions.ArchiveAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if !applied {
		return ErrAuctionNotArchivable
	}
	s.publisher.PublishLifecycleEvent(events.LifecycleEvent{
		AuctionID: auctionID,
		Status:    string(models.CancelledAuction),
		Timestamp: s.now().UTC(),
	})
	return nil
}

// DeleteAuction hard-deletes a terminal auction and its bids.
func (s *LifecycleService) DeleteAuction(ctx context.Context, auctionID string) error {
	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if auction == nil {
		return ErrAuctionNotFound
	}

	applied, err := s.auctions.DeleteAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if !applied {
		return ErrAuctionNotDeletable
	}
	return nil
}

// RunSweep is the reconciliation backstop: it applies any start or end
// transition whose scheduled callback was lost, late, or never armed, and
// returns the number of transitions actually applied. A no-op (a racing
// callback got there first) is not counted. Individual failures are logged
// and do not abort the sweep.
func (s *LifecycleService) RunSweep(ctx context.Context) (int, error) {
	now := s.now().UTC()
	processed := 0

	expired, err := s.auctions.ExpiredActiveIDs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired auctions: %w", err)
	}
	for _, id := range expired {
		applied, err := s.TransitionEnd(ctx, id)
		if err != nil {
			s.logger.Printf("sweep: failed to end auction %s: %v", id, err)
			continue
		}
		if applied {
			processed++
		}
	}

	due, err := s.auctions.DueDraftIDs(ctx, now)
	if err != nil {
		return processed, fmt.Errorf("failed to list due draft auctions: %w", err)
	}
	for _, id := range due {
		applied, err := s.TransitionStart(ctx, id)
		if err != nil {
			s.logger.Printf("sweep: failed to start auction %s: %v", id, err)
			continue
		}
		if applied {
			processed++
		}
	}

	return processed, nil
}

package services

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/piggybanx/auction-service/internal/models"
	"github.com/piggybanx/auction-service/internal/scheduler"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func newTestLifecycleService(store *memoryStore, now time.Time) (*LifecycleService, *fakeScheduler, *fakePublisher) {
	sched := &fakeScheduler{}
	publisher := &fakePublisher{}
	service := NewLifecycleService(store, store, sched, publisher, log.New(io.Discard, "", 0))
	service.now = func() time.Time { return now }
	return service, sched, publisher
}

func auctionWithWinner(id, ownerID, bidderID string, amount int64, endTime time.Time) *models.Auction {
	auction := activeAuction(id, ownerID, amount, endTime, false)
	auction.CurrentBidderID = &bidderID
	auction.BidCount = 3
	return auction
}

func pendingRequest(id, requesterID string) *models.AuctionRequest {
	return &models.AuctionRequest{
		ID:          id,
		ArtPieceID:  "art-1",
		RequesterID: requesterID,
		Title:       "Test Piece",
		Description: "A test piece",
		Status:      models.PendingRequest,
		CreatedAt:   testTime.Add(-time.Hour),
	}
}

func TestTransitionEnd_CompletesWithWinner(t *testing.T) {
	store := newMemoryStore()
	store.auctions["a1"] = auctionWithWinner("a1", "owner", "winner", 900, testTime.Add(-time.Minute))
	service, _, publisher := newTestLifecycleService(store, testTime)

	applied, err := service.TransitionEnd(context.Background(), "a1")

	check.Nil(t, err)
	check.True(t, applied)
	auction := store.auctions["a1"]
	check.Equal(t, models.CompletedAuction, auction.Status)
	check.NotNil(t, auction.WinnerAccepted)
	check.True(t, *auction.WinnerAccepted)
	check.True(t, auction.PaymentDeadline.Equal(testTime.Add(paymentWindow)))
	check.True(t, auction.ShippingDeadline.Equal(testTime.Add(shippingWindow)))

	check.Equal(t, 1, len(store.transactions))
	transaction := store.transactions[0]
	check.Equal(t, "winner", transaction.BuyerID)
	check.Equal(t, "owner", transaction.SellerID)
	check.True(t, transaction.Amount.Equal(decimal.NewFromInt(900)))
	check.Equal(t, models.PendingTransaction, transaction.Status)

	check.Equal(t, 1, store.notificationCount(models.AuctionWonNotification))
	check.Equal(t, 1, store.notificationCount(models.AuctionEndedNotification))
	check.Equal(t, []string{"a1"}, publisher.winnerEmails)
	check.Equal(t, 1, len(publisher.lifecycleEvents))
}

func TestTransitionEnd_Idempotent(t *testing.T) {
	store := newMemoryStore()
	store.auctions["a1"] = auctionWithWinner("a1", "owner", "winner", 900, testTime.Add(-time.Minute))
	service, _, publisher := newTestLifecycleService(store, testTime)

	// A scheduled callback and the sweep may both fire for the same auction.
	applied, err := service.TransitionEnd(context.Background(), "a1")
	check.Nil(t, err)
	check.True(t, applied)
	applied, err = service.TransitionEnd(context.Background(), "a1")
	check.Nil(t, err)
	check.False(t, applied)

	check.Equal(t, 1, len(store.transactions))
	check.Equal(t, 1, store.notificationCount(models.AuctionWonNotification))
	check.Equal(t, 1, len(publisher.winnerEmails))
	check.Equal(t, 1, len(publisher.lifecycleEvents))
}

func TestTransitionEnd_NoBids(t *testing.T) {
	store := newMemoryStore()
	store.auctions["a1"] = activeAuction("a1", "owner", 100, testTime.Add(-time.Minute), false)
	service, _, publisher := newTestLifecycleService(store, testTime)

	applied, err := service.TransitionEnd(context.Background(), "a1")

	check.Nil(t, err)
	check.True(t, applied)
	check.Equal(t, models.EndedAuction, store.auctions["a1"].Status)
	check.Equal(t, 0, len(store.transactions))
	check.Equal(t, 1, store.notificationCount(models.AuctionEndedNotification))
	check.Equal(t, 0, len(publisher.winnerEmails))
}

func TestTransitionEnd_IgnoresNonActive(t *testing.T) {
	store := newMemoryStore()
	auction := activeAuction("a1", "owner", 100, testTime.Add(-time.Minute), false)
	auction.Status = models.CancelledAuction
	store.auctions["a1"] = auction
	service, _, publisher := newTestLifecycleService(store, testTime)

	applied, err := service.TransitionEnd(context.Background(), "a1")
	check.Nil(t, err)
	check.False(t, applied)
	applied, err = service.TransitionEnd(context.Background(), "missing")
	check.Nil(t, err)
	check.False(t, applied)

	check.Equal(t, models.CancelledAuction, store.auctions["a1"].Status)
	check.Equal(t, 0, len(publisher.lifecycleEvents))
}

func TestTransitionStart_ActivatesAndSchedulesEnd(t *testing.T) {
	store := newMemoryStore()
	endTime := testTime.Add(2 * time.Hour)
	auction := activeAuction("a1", "owner", 100, endTime, false)
	auction.Status = models.DraftAuction
	store.auctions["a1"] = auction
	service, sched, publisher := newTestLifecycleService(store, testTime)

	applied, err := service.TransitionStart(context.Background(), "a1")

	check.Nil(t, err)
	check.True(t, applied)
	check.Equal(t, models.ActiveAuction, store.auctions["a1"].Status)
	check.Equal(t, 1, store.notificationCount(models.AuctionStartedNotification))
	check.Equal(t, 1, len(publisher.lifecycleEvents))

	check.Equal(t, 1, len(sched.calls))
	check.Equal(t, scheduler.EndAuction, sched.calls[0].op)
	check.Equal(t, "a1", sched.calls[0].auctionID)
	check.Equal(t, 2*time.Hour, sched.calls[0].delay)
}

func TestTransitionStart_NoOpWhenNotDraft(t *testing.T) {
	store := newMemoryStore()
	store.auctions["a1"] = activeAuction("a1", "owner", 100, testTime.Add(time.Hour), false)
	service, sched, publisher := newTestLifecycleService(store, testTime)

	applied, err := service.TransitionStart(context.Background(), "a1")

	check.Nil(t, err)
	check.False(t, applied)
	check.Equal(t, 0, len(sched.calls))
	check.Equal(t, 0, len(publisher.lifecycleEvents))
	check.Equal(t, 0, store.notificationCount(models.AuctionStartedNotification))
}

func TestApprove_ImmediateStartSchedulesEnd(t *testing.T) {
	store := newMemoryStore()
	store.requests["r1"] = pendingRequest("r1", "seller")
	service, sched, _ := newTestLifecycleService(store, testTime)

	endTime := testTime.Add(3 * time.Hour)
	auctionID, err := service.ApproveAndScheduleAuction(context.Background(), "r1", "admin", models.ApproveRequest{
		StartingPrice: decimal.NewFromInt(500),
		StartTime:     testTime.Add(-time.Minute),
		EndTime:       endTime,
	})

	check.Nil(t, err)
	auction := store.auctions[auctionID]
	check.NotNil(t, auction)
	check.Equal(t, models.ActiveAuction, auction.Status)
	check.Equal(t, "seller", auction.AuctioneerID)
	check.True(t, auction.CurrentBid.Equal(decimal.NewFromInt(500)))

	check.Equal(t, models.ApprovedRequest, store.requests["r1"].Status)
	check.Equal(t, 1, store.notificationCount(models.RequestApprovedNotification))

	check.Equal(t, 1, len(sched.calls))
	check.Equal(t, scheduler.EndAuction, sched.calls[0].op)
	check.Equal(t, auctionID, sched.calls[0].auctionID)
}

func TestApprove_FutureStartSchedulesStart(t *testing.T) {
	store := newMemoryStore()
	store.requests["r1"] = pendingRequest("r1", "seller")
	service, sched, _ := newTestLifecycleService(store, testTime)

	startTime := testTime.Add(time.Hour)
	auctionID, err := service.ApproveAndScheduleAuction(context.Background(), "r1", "admin", models.ApproveRequest{
		StartingPrice: decimal.NewFromInt(500),
		StartTime:     startTime,
		EndTime:       startTime.Add(24 * time.Hour),
	})

	check.Nil(t, err)
	check.Equal(t, models.DraftAuction, store.auctions[auctionID].Status)

	// The end callback comes later, from TransitionStart.
	check.Equal(t, 1, len(sched.calls))
	check.Equal(t, scheduler.StartAuction, sched.calls[0].op)
	check.Equal(t, time.Hour, sched.calls[0].delay)
}

func TestApprove_RejectsNonPendingRequest(t *testing.T) {
	store := newMemoryStore()
	request := pendingRequest("r1", "seller")
	request.Status = models.ApprovedRequest
	store.requests["r1"] = request
	service, sched, _ := newTestLifecycleService(store, testTime)

	approval := models.ApproveRequest{
		StartingPrice: decimal.NewFromInt(500),
		StartTime:     testTime,
		EndTime:       testTime.Add(time.Hour),
	}

	_, err := service.ApproveAndScheduleAuction(context.Background(), "r1", "admin", approval)
	check.True(t, errors.Is(err, ErrRequestNotPending))

	_, err = service.ApproveAndScheduleAuction(context.Background(), "missing", "admin", approval)
	check.True(t, errors.Is(err, ErrRequestNotFound))

	check.Equal(t, 0, len(sched.calls))
}

func TestApprove_ConcurrentApprovalCreatesOneAuction(t *testing.T) {
	store := newMemoryStore()
	store.requests["r1"] = pendingRequest("r1", "seller")
	service, _, _ := newTestLifecycleService(store, testTime)

	approval := models.ApproveRequest{
		StartingPrice: decimal.NewFromInt(500),
		StartTime:     testTime,
		EndTime:       testTime.Add(time.Hour),
	}

	// A second admin's approval commits between this caller's pending check
	// and its guarded status update.
	store.beforeApprove = func() {
		other, _, _ := newTestLifecycleService(store, testTime)
		_, err := other.ApproveAndScheduleAuction(context.Background(), "r1", "admin-2", approval)
		check.Nil(t, err)
	}

	_, err := service.ApproveAndScheduleAuction(context.Background(), "r1", "admin-1", approval)

	check.True(t, errors.Is(err, ErrRequestNotPending))
	check.Equal(t, 1, len(store.auctions))
	check.Equal(t, 1, store.notificationCount(models.RequestApprovedNotification))
}

func TestRejectAuctionRequest(t *testing.T) {
	store := newMemoryStore()
	store.requests["r1"] = pendingRequest("r1", "seller")
	service, _, _ := newTestLifecycleService(store, testTime)

	err := service.RejectAuctionRequest(context.Background(), "r1", "admin", "not eligible")

	check.Nil(t, err)
	check.Equal(t, models.RejectedRequest, store.requests["r1"].Status)
	check.Equal(t, 1, store.notificationCount(models.RequestRejectedNotification))

	// Already rejected, and unknown ids, surface as distinct errors.
	check.True(t, errors.Is(service.RejectAuctionRequest(context.Background(), "r1", "admin", "again"), ErrRequestNotPending))
	check.True(t, errors.Is(service.RejectAuctionRequest(context.Background(), "missing", "admin", ""), ErrRequestNotFound))
}

func TestArchiveAuction(t *testing.T) {
	store := newMemoryStore()
	store.auctions["a1"] = activeAuction("a1", "owner", 100, testTime.Add(time.Hour), false)
	completed := activeAuction("a2", "owner", 100, testTime.Add(-time.Hour), false)
	completed.Status = models.CompletedAuction
	store.auctions["a2"] = completed
	service, _, publisher := newTestLifecycleService(store, testTime)

	check.Nil(t, service.ArchiveAuction(context.Background(), "a1"))
	check.Equal(t, models.CancelledAuction, store.auctions["a1"].Status)
	check.Equal(t, 1, len(publisher.lifecycleEvents))

	check.True(t, errors.Is(service.ArchiveAuction(context.Background(), "a2"), ErrAuctionNotArchivable))
	check.True(t, errors.Is(service.ArchiveAuction(context.Background(), "missing"), ErrAuctionNotFound))
}

func TestDeleteAuction(t *testing.T) {
	store := newMemoryStore()
	ended := activeAuction("a1", "owner", 100, testTime.Add(-time.Hour), false)
	ended.Status = models.EndedAuction
	store.auctions["a1"] = ended
	store.bids = append(store.bids, models.Bid{ID: "b1", AuctionID: "a1", BidderID: "bidder-a"})
	store.auctions["a2"] = activeAuction("a2", "owner", 100, testTime.Add(time.Hour), false)
	service, _, _ := newTestLifecycleService(store, testTime)

	check.Nil(t, service.DeleteAuction(context.Background(), "a1"))
	_, ok := store.auctions["a1"]
	check.False(t, ok)
	check.Equal(t, 0, len(store.bids))

	check.True(t, errors.Is(service.DeleteAuction(context.Background(), "a2"), ErrAuctionNotDeletable))
	check.True(t, errors.Is(service.DeleteAuction(context.Background(), "missing"), ErrAuctionNotFound))
}

func TestRunSweep_ConvergesMissedTransitions(t *testing.T) {
	store := newMemoryStore()
	// An active auction whose end callback was lost.
	store.auctions["expired"] = auctionWithWinner("expired", "owner", "winner", 900, testTime.Add(-time.Minute))
	// A draft whose start callback was lost; its end is still in the future.
	due := activeAuction("due", "owner", 100, testTime.Add(time.Hour), false)
	due.Status = models.DraftAuction
	due.StartTime = testTime.Add(-time.Minute)
	store.auctions["due"] = due
	// A healthy active auction the sweep must leave alone.
	store.auctions["running"] = activeAuction("running", "owner", 100, testTime.Add(time.Hour), false)
	service, _, _ := newTestLifecycleService(store, testTime)

	processed, err := service.RunSweep(context.Background())

	check.Nil(t, err)
	check.Equal(t, 2, processed)
	check.Equal(t, models.CompletedAuction, store.auctions["expired"].Status)
	check.Equal(t, models.ActiveAuction, store.auctions["due"].Status)
	check.Equal(t, models.ActiveAuction, store.auctions["running"].Status)

	// Everything converged, so the next pass finds nothing to do.
	processed, err = service.RunSweep(context.Background())
	check.Nil(t, err)
	check.Equal(t, 0, processed)
	check.Equal(t, 1, len(store.transactions))
}

func TestRunSweep_CountsOnlyAppliedTransitions(t *testing.T) {
	store := newMemoryStore()
	store.auctions["expired"] = auctionWithWinner("expired", "owner", "winner", 900, testTime.Add(-time.Minute))
	// An auction that was listed as expired but was ended by a racing
	// callback before the sweep reached it.
	done := activeAuction("done", "owner", 100, testTime.Add(-time.Minute), false)
	done.Status = models.CompletedAuction
	store.auctions["done"] = done
	store.staleExpiredIDs = []string{"done"}
	service, _, _ := newTestLifecycleService(store, testTime)

	processed, err := service.RunSweep(context.Background())

	check.Nil(t, err)
	check.Equal(t, 1, processed)
}

func TestCreateAuctionRequest(t *testing.T) {
	store := newMemoryStore()
	service, _, _ := newTestLifecycleService(store, testTime)

	request, err := service.CreateAuctionRequest(context.Background(), "seller", "art-1", "Test Piece", "A test piece")

	check.Nil(t, err)
	check.NotNil(t, request)
	check.Equal(t, models.PendingRequest, request.Status)
	check.NotNil(t, store.requests[request.ID])

	_, err = service.CreateAuctionRequest(context.Background(), "seller", "art-1", "", "no title")
	check.NotNil(t, err)
}

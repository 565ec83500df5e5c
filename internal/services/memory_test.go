package services

import (
	"context"
	"time"

	"github.com/piggybanx/auction-service/internal/events"
	"github.com/piggybanx/auction-service/internal/models"
	"github.com/piggybanx/auction-service/internal/repository"
	"github.com/piggybanx/auction-service/internal/scheduler"

	"github.com/google/uuid"
)

// memoryStore is an in-memory stand-in for the Postgres repositories. It
// mirrors the transition semantics of the SQL implementation: conditional
// updates report whether they applied, and the bid/end transactions write
// their notifications atomically.
type memoryStore struct {
	auctions      map[string]*models.Auction
	bids          []models.Bid
	notifications []models.Notification
	transactions  []models.Transaction
	requests      map[string]*models.AuctionRequest

	blacklistedIDs    map[string]bool
	blacklistedEmails map[string]bool
	userEmails        map[string]string

	recordBidErr      error    // injected fault for lock-release tests
	beforeAcquireLock func()   // runs once before the next lock CAS
	beforeApprove     func()   // runs once before the next approval guard
	staleExpiredIDs   []string // extra ids returned by ExpiredActiveIDs
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		auctions:          make(map[string]*models.Auction),
		requests:          make(map[string]*models.AuctionRequest),
		blacklistedIDs:    make(map[string]bool),
		blacklistedEmails: make(map[string]bool),
		userEmails:        make(map[string]string),
	}
}

func (m *memoryStore) CreateAuction(_ context.Context, auction *models.Auction) error {
	copied := *auction
	m.auctions[auction.ID] = &copied
	return nil
}

func (m *memoryStore) GetAuction(_ context.Context, auctionID string) (*models.Auction, error) {
	auction, ok := m.auctions[auctionID]
	if !ok {
		return nil, nil
	}
	copied := *auction
	return &copied, nil
}

func (m *memoryStore) ListByStatus(_ context.Context, status models.AuctionStatus) ([]models.Auction, error) {
	var result []models.Auction
	for _, auction := range m.auctions {
		if auction.Status == status {
			result = append(result, *auction)
		}
	}
	return result, nil
}

func (m *memoryStore) ListByStatuses(_ context.Context, statuses []string) ([]models.Auction, error) {
	var result []models.Auction
	for _, auction := range m.auctions {
		for _, status := range statuses {
			if string(auction.Status) == status {
				result = append(result, *auction)
				break
			}
		}
	}
	return result, nil
}

func (m *memoryStore) ExpiredActiveIDs(_ context.Context, now time.Time) ([]string, error) {
	ids := append([]string(nil), m.staleExpiredIDs...)
	for id, auction := range m.auctions {
		if auction.Status == models.ActiveAuction && !auction.EndTime.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryStore) DueDraftIDs(_ context.Context, now time.Time) ([]string, error) {
	var ids []string
	for id, auction := range m.auctions {
		if auction.Status == models.DraftAuction && !auction.StartTime.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryStore) AcquireBidLock(_ context.Context, auctionID string) (bool, error) {
	if m.beforeAcquireLock != nil {
		hook := m.beforeAcquireLock
		m.beforeAcquireLock = nil
		hook()
	}
	auction, ok := m.auctions[auctionID]
	if !ok || auction.IsLocked {
		return false, nil
	}
	auction.IsLocked = true
	return true, nil
}

func (m *memoryStore) ReleaseBidLock(_ context.Context, auctionID string) error {
	if auction, ok := m.auctions[auctionID]; ok {
		auction.IsLocked = false
	}
	return nil
}

func (m *memoryStore) RecordBid(_ context.Context, params repository.RecordBidParams) (*models.Bid, error) {
	if m.recordBidErr != nil {
		return nil, m.recordBidErr
	}
	auction := m.auctions[params.AuctionID]

	if params.PrevBidderID != nil {
		for i := range m.bids {
			if m.bids[i].AuctionID == params.AuctionID && m.bids[i].IsWinning {
				m.bids[i].IsWinning = false
			}
		}
		m.addNotification(*params.PrevBidderID, models.BidOutbidNotification, params.AuctionID)
	}

	newBid := models.Bid{
		ID:        uuid.New().String(),
		AuctionID: params.AuctionID,
		BidderID:  params.BidderID,
		Amount:    params.Amount,
		PlacedAt:  params.PlacedAt,
		IsValid:   true,
		IsWinning: true,
	}
	m.bids = append(m.bids, newBid)

	bidderID := params.BidderID
	auction.CurrentBid = params.Amount
	auction.CurrentBidderID = &bidderID
	auction.BidCount++
	auction.EndTime = params.NewEndTime
	auction.IsLocked = false

	m.addNotification(params.OwnerID, models.BidPlacedNotification, params.AuctionID)
	return &newBid, nil
}

func (m *memoryStore) ActivateAuction(_ context.Context, auctionID string) (bool, error) {
	auction, ok := m.auctions[auctionID]
	if !ok || auction.Status != models.DraftAuction {
		return false, nil
	}
	auction.Status = models.ActiveAuction
	m.addNotification(auction.AuctioneerID, models.AuctionStartedNotification, auctionID)
	return true, nil
}

func (m *memoryStore) CompleteAuction(_ context.Context, params repository.CompleteAuctionParams) (bool, error) {
	auction, ok := m.auctions[params.AuctionID]
	if !ok || auction.Status != models.ActiveAuction {
		return false, nil
	}
	accepted := true
	auction.Status = models.CompletedAuction
	auction.WinnerAccepted = &accepted
	paymentDeadline := params.PaymentDeadline
	shippingDeadline := params.ShippingDeadline
	auction.PaymentDeadline = &paymentDeadline
	auction.ShippingDeadline = &shippingDeadline

	m.transactions = append(m.transactions, models.Transaction{
		ID:        uuid.New().String(),
		AuctionID: params.AuctionID,
		BuyerID:   params.WinnerID,
		SellerID:  params.SellerID,
		Amount:    params.Amount,
		Status:    models.PendingTransaction,
	})
	m.addNotification(params.WinnerID, models.AuctionWonNotification, params.AuctionID)
	m.addNotification(params.SellerID, models.AuctionEndedNotification, params.AuctionID)
	return true, nil
}

func (m *memoryStore) EndWithoutBids(_ context.Context, auctionID, ownerID, _ string) (bool, error) {
	auction, ok := m.auctions[auctionID]
	if !ok || auction.Status != models.ActiveAuction {
		return false, nil
	}
	auction.Status = models.EndedAuction
	m.addNotification(ownerID, models.AuctionEndedNotification, auctionID)
	return true, nil
}

func (m *memoryStore) ArchiveAuction(_ context.Context, auctionID string) (bool, error) {
	auction, ok := m.auctions[auctionID]
	if !ok || (auction.Status != models.DraftAuction && auction.Status != models.ActiveAuction) {
		return false, nil
	}
	auction.Status = models.CancelledAuction
	return true, nil
}

func (m *memoryStore) DeleteAuction(_ context.Context, auctionID string) (bool, error) {
	auction, ok := m.auctions[auctionID]
	if !ok || (auction.Status != models.EndedAuction && auction.Status != models.CancelledAuction) {
		return false, nil
	}
	delete(m.auctions, auctionID)
	var remaining []models.Bid
	for _, bid := range m.bids {
		if bid.AuctionID != auctionID {
			remaining = append(remaining, bid)
		}
	}
	m.bids = remaining
	return true, nil
}

func (m *memoryStore) CreateRequest(_ context.Context, request *models.AuctionRequest) error {
	copied := *request
	m.requests[request.ID] = &copied
	return nil
}

func (m *memoryStore) GetRequest(_ context.Context, requestID string) (*models.AuctionRequest, error) {
	request, ok := m.requests[requestID]
	if !ok {
		return nil, nil
	}
	copied := *request
	return &copied, nil
}

func (m *memoryStore) ListPending(_ context.Context) ([]models.AuctionRequest, error) {
	var result []models.AuctionRequest
	for _, request := range m.requests {
		if request.Status == models.PendingRequest {
			result = append(result, *request)
		}
	}
	return result, nil
}

func (m *memoryStore) ApproveRequest(_ context.Context, params repository.ApproveRequestParams) (bool, error) {
	if m.beforeApprove != nil {
		hook := m.beforeApprove
		m.beforeApprove = nil
		hook()
	}
	request, ok := m.requests[params.RequestID]
	if !ok || request.Status != models.PendingRequest {
		return false, nil
	}
	copied := *params.Auction
	m.auctions[copied.ID] = &copied

	request.Status = models.ApprovedRequest
	request.AuctionID = &copied.ID
	request.ApprovedBy = &params.AdminID
	approvedAt := params.ApprovedAt
	request.ApprovedAt = &approvedAt

	m.addNotification(copied.AuctioneerID, models.RequestApprovedNotification, copied.ID)
	return true, nil
}

func (m *memoryStore) RejectRequest(_ context.Context, params repository.RejectRequestParams) (bool, error) {
	request, ok := m.requests[params.RequestID]
	if !ok || request.Status != models.PendingRequest {
		return false, nil
	}
	request.Status = models.RejectedRequest
	request.RejectedBy = &params.AdminID
	rejectedAt := params.RejectedAt
	request.RejectedAt = &rejectedAt
	m.addNotification(request.RequesterID, models.RequestRejectedNotification, params.RequestID)
	return true, nil
}

func (m *memoryStore) IsBlacklisted(_ context.Context, userID string) (bool, error) {
	if m.blacklistedIDs[userID] {
		return true, nil
	}
	if email, ok := m.userEmails[userID]; ok && m.blacklistedEmails[email] {
		return true, nil
	}
	return false, nil
}

func (m *memoryStore) AddEntry(_ context.Context, userID, email, _, _ string) error {
	if userID != "" {
		m.blacklistedIDs[userID] = true
	}
	if email != "" {
		m.blacklistedEmails[email] = true
	}
	return nil
}

func (m *memoryStore) DeactivateEntry(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (m *memoryStore) addNotification(userID string, kind models.NotificationType, auctionID string) {
	m.notifications = append(m.notifications, models.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      kind,
		AuctionID: &auctionID,
	})
}

func (m *memoryStore) notificationCount(kind models.NotificationType) int {
	count := 0
	for _, n := range m.notifications {
		if n.Type == kind {
			count++
		}
	}
	return count
}

func (m *memoryStore) winningBids(auctionID string) []models.Bid {
	var winning []models.Bid
	for _, bid := range m.bids {
		if bid.AuctionID == auctionID && bid.IsWinning {
			winning = append(winning, bid)
		}
	}
	return winning
}

// fakeScheduler records scheduled callbacks instead of arming timers.
type fakeScheduler struct {
	calls []scheduledCall
}

type scheduledCall struct {
	delay     time.Duration
	op        scheduler.Operation
	auctionID string
}

func (f *fakeScheduler) ScheduleAfter(delay time.Duration, op scheduler.Operation, auctionID string) {
	f.calls = append(f.calls, scheduledCall{delay: delay, op: op, auctionID: auctionID})
}

// fakePublisher counts published events.
type fakePublisher struct {
	bidEvents       []events.BidEvent
	lifecycleEvents []events.LifecycleEvent
	winnerEmails    []string
}

func (f *fakePublisher) PublishBidEvent(event events.BidEvent) {
	f.bidEvents = append(f.bidEvents, event)
}

func (f *fakePublisher) PublishLifecycleEvent(event events.LifecycleEvent) {
	f.lifecycleEvents = append(f.lifecycleEvents, event)
}

func (f *fakePublisher) PublishWinnerEmail(auctionID string) {
	f.winnerEmails = append(f.winnerEmails, auctionID)
}

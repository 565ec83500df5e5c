package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/piggybanx/auction-service/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// RecordBidParams carries everything the bid transaction needs. The service
// layer computes the new end time and snapshots the previous winner before
// calling RecordBid.
type RecordBidParams struct {
	AuctionID    string
	BidderID     string
	Amount       decimal.Decimal
	PlacedAt     time.Time
	NewEndTime   time.Time
	OwnerID      string
	Title        string
	PrevBidderID *string
	PrevAmount   decimal.Decimal
}

// CompleteAuctionParams carries the outcome of an auction that ended with a
// winning bidder.
type CompleteAuctionParams struct {
	AuctionID        string
	WinnerID         string
	SellerID         string
	Amount           decimal.Decimal
	Title            string
	PaymentDeadline  time.Time
	ShippingDeadline time.Time
}

// AuctionRepository is the durable store of auction records. The mutating
// transition methods return whether the transition was applied so callers
// can treat stale or duplicate invocations as no-ops.
type AuctionRepository interface {
	CreateAuction(ctx context.Context, auction *models.Auction) error
	GetAuction(ctx context.Context, auctionID string) (*models.Auction, error)
	ListByStatus(ctx context.Context, status models.AuctionStatus) ([]models.Auction, error)
	ListByStatuses(ctx context.Context, statuses []string) ([]models.Auction, error)
	ExpiredActiveIDs(ctx context.Context, now time.Time) ([]string, error)
	DueDraftIDs(ctx context.Context, now time.Time) ([]string, error)
	AcquireBidLock(ctx context.Context, auctionID string) (bool, error)
	ReleaseBidLock(ctx context.Context, auctionID string) error
	RecordBid(ctx context.Context, params RecordBidParams) (*models.Bid, error)
	ActivateAuction(ctx context.Context, auctionID string) (bool, error)
	CompleteAuction(ctx context.Context, params CompleteAuctionParams) (bool, error)
	EndWithoutBids(ctx context.Context, auctionID, ownerID, title string) (bool, error)
	ArchiveAuction(ctx context.Context, auctionID string) (bool, error)
	DeleteAuction(ctx context.Context, auctionID string) (bool, error)
}

// PostgresAuctionRepository implements AuctionRepository on pgx.
type PostgresAuctionRepository struct {
	DB *pgxpool.Pool
}

func NewPostgresAuctionRepository(db *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{DB: db}
}

const auctionColumns = `id, art_piece_id, auctioneer_id, title, description, starting_price, current_bid,
	current_bidder_id, status, start_time, end_time, is_fixed_end_time, bid_count, is_locked,
	flagged_count, winner_accepted, payment_deadline, shipping_deadline, request_id, created_at`

func scanAuction(row pgx.Row) (*models.Auction, error) {
	var auction models.Auction
	err := row.Scan(
		&auction.ID,
		&auction.ArtPieceID,
		&auction.AuctioneerID,
		&auction.Title,
		&auction.Description,
		&auction.StartingPrice,
		&auction.CurrentBid,
		&auction.CurrentBidderID,
		&auction.Status,
		&auction.StartTime,
		&auction.EndTime,
		&auction.IsFixedEndTime,
		&auction.BidCount,
		&auction.IsLocked,
		&auction.FlaggedCount,
		&auction.WinnerAccepted,
		&auction.PaymentDeadline,
		&auction.ShippingDeadline,
		&auction.RequestID,
		&auction.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &auction, nil
}

// CreateAuction inserts a new auction record.
func (r *PostgresAuctionRepository) CreateAuction(ctx context.Context, auction *models.Auction) error {
	insertQuery := `INSERT INTO auctions (` + auctionColumns + `)
	               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		auction.ID,
		auction.ArtPieceID,
		auction.AuctioneerID,
		auction.Title,
		auction.Description,
		auction.StartingPrice,
		auction.CurrentBid,
		auction.CurrentBidderID,
		auction.Status,
		auction.StartTime,
		auction.EndTime,
		auction.IsFixedEndTime,
		auction.BidCount,
		auction.IsLocked,
		auction.FlaggedCount,
		auction.WinnerAccepted,
		auction.PaymentDeadline,
		auction.ShippingDeadline,
		auction.RequestID,
		auction.CreatedAt)
	return err
}

// GetAuction returns the auction or nil when no such record exists.
func (r *PostgresAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*models.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	auction, err := scanAuction(r.DB.QueryRow(ctx, query, auctionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return auction, nil
}

// ListByStatus returns auctions in one status, newest first.
func (r *PostgresAuctionRepository) ListByStatus(ctx context.Context, status models.AuctionStatus) ([]models.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = $1 ORDER BY created_at DESC`
	rows, err := r.DB.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAuctions(rows)
}

// ListByStatuses returns auctions in any of the given statuses, newest first.
func (r *PostgresAuctionRepository) ListByStatuses(ctx context.Context, statuses []string) ([]models.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ANY($1) ORDER BY created_at DESC`
	rows, err := r.DB.Query(ctx, query, pq.Array(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAuctions(rows)
}

func collectAuctions(rows pgx.Rows) ([]models.Auction, error) {
	var auctions []models.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, *auction)
	}
	return auctions, rows.Err()
}

// ExpiredActiveIDs returns ids of active auctions whose end time has passed.
func (r *PostgresAuctionRepository) ExpiredActiveIDs(ctx context.Context, now time.Time) ([]string, error) {
	query := `SELECT id FROM auctions WHERE status = 'active' AND end_time <= $1`
	return r.collectIDs(ctx, query, now)
}

// DueDraftIDs returns ids of draft auctions whose start time has passed.
func (r *PostgresAuctionRepository) DueDraftIDs(ctx context.Context, now time.Time) ([]string, error) {
	query := `SELECT id FROM auctions WHERE status = 'draft' AND start_time <= $1`
	return r.collectIDs(ctx, query, now)
}

func (r *PostgresAuctionRepository) collectIDs(ctx context.Context, query string, now time.Time) ([]string, error) {
	rows, err := r.DB.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AcquireBidLock sets the per-auction busy flag with a compare-and-swap.
// Returns false when another bid attempt holds the lock.
func (r *PostgresAuctionRepository) AcquireBidLock(ctx context.Context, auctionID string) (bool, error) {
	tag, err := r.DB.Exec(ctx,
		`UPDATE auctions SET is_locked = TRUE WHERE id = $1 AND is_locked = FALSE`, auctionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseBidLock clears the busy flag unconditionally.
func (r *PostgresAuctionRepository) ReleaseBidLock(ctx context.Context, auctionID string) error {
	_, err := r.DB.Exec(ctx,
		`UPDATE auctions SET is_locked = FALSE WHERE id = $1`, auctionID)
	return err
}

// RecordBid applies one accepted bid in a single transaction: demote the
// previous winning bid, insert the new one, update the auction (including
// releasing the bid lock), and store the outbid/new-bid notifications.
func (r *PostgresAuctionRepository) RecordBid(ctx context.Context, params RecordBidParams) (*models.Bid, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin bid transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if params.PrevBidderID != nil {
		_, err = tx.Exec(ctx,
			`UPDATE bids SET is_winning = FALSE WHERE auction_id = $1 AND is_winning = TRUE`,
			params.AuctionID)
		if err != nil {
			return nil, err
		}

		outbid := models.Notification{
			ID:        uuid.New().String(),
			UserID:    *params.PrevBidderID,
			Type:      models.BidOutbidNotification,
			Title:     "You've been outbid",
			Message:   fmt.Sprintf("Your bid of $%s on %q has been outbid.", params.PrevAmount, params.Title),
			AuctionID: &params.AuctionID,
			Priority:  models.MediumPriority,
			CreatedAt: params.PlacedAt,
		}
		if err = insertNotificationTx(ctx, tx, outbid); err != nil {
			return nil, err
		}
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
	_, err = tx.Exec(ctx,
		`INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at, is_valid, is_winning)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		newBid.ID, newBid.AuctionID, newBid.BidderID, newBid.Amount, newBid.PlacedAt, newBid.IsValid, newBid.IsWinning)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE auctions
		 SET current_bid = $2, current_bidder_id = $3, bid_count = bid_count + 1, end_time = $4, is_locked = FALSE
		 WHERE id = $1`,
		params.AuctionID, params.Amount, params.BidderID, params.NewEndTime)
	if err != nil {
		return nil, err
	}

	placed := models.Notification{
		ID:        uuid.New().String(),
		UserID:    params.OwnerID,
		Type:      models.BidPlacedNotification,
		Title:     "New bid received",
		Message:   fmt.Sprintf("New bid of $%s placed on %q.", params.Amount, params.Title),
		AuctionID: &params.AuctionID,
		Priority:  models.HighPriority,
		CreatedAt: params.PlacedAt,
	}
	if err = insertNotificationTx(ctx, tx, placed); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit bid transaction: %w", err)
	}
	return &newBid, nil
}

// ActivateAuction flips a draft auction to active and notifies the owner.
// Returns false without side effects when the auction is no longer a draft.
func (r *PostgresAuctionRepository) ActivateAuction(ctx context.Context, auctionID string) (bool, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var ownerID, title string
	err = tx.QueryRow(ctx,
		`UPDATE auctions SET status = 'active' WHERE id = $1 AND status = 'draft'
		 RETURNING auctioneer_id, title`, auctionID).Scan(&ownerID, &title)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	started := models.Notification{
		ID:        uuid.New().String(),
		UserID:    ownerID,
		Type:      models.AuctionStartedNotification,
		Title:     "Your auction has started",
		Message:   fmt.Sprintf("Your auction for %q is now live and accepting bids.", title),
		AuctionID: &auctionID,
		Priority:  models.HighPriority,
		CreatedAt: time.Now().UTC(),
	}
	if err = insertNotificationTx(ctx, tx, started); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// CompleteAuction closes an auction that has a winning bidder: status,
// deadlines, the pending sale transaction, and both notifications are
// written in one transaction. Returns false when the auction was already
// transitioned by a racing sweep or a duplicate callback.
func (r *PostgresAuctionRepository) CompleteAuction(ctx context.Context, params CompleteAuctionParams) (bool, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE auctions
		 SET status = 'completed', winner_accepted = TRUE, payment_deadline = $2, shipping_deadline = $3
		 WHERE id = $1 AND status = 'active'`,
		params.AuctionID, params.PaymentDeadline, params.ShippingDeadline)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (id, auction_id, buyer_id, seller_id, amount, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), params.AuctionID, params.WinnerID, params.SellerID, params.Amount,
		models.PendingTransaction, now)
	if err != nil {
		return false, err
	}

	won := models.Notification{
		ID:        uuid.New().String(),
		UserID:    params.WinnerID,
		Type:      models.AuctionWonNotification,
		Title:     "Congratulations! You won the auction",
		Message:   fmt.Sprintf("Your bid of $%s for %q has been accepted. Payment is due within 7 days.", params.Amount, params.Title),
		AuctionID: &params.AuctionID,
		Priority:  models.HighPriority,
		CreatedAt: now,
	}
	if err = insertNotificationTx(ctx, tx, won); err != nil {
		return false, err
	}

	ended := models.Notification{
		ID:        uuid.New().String(),
		UserID:    params.SellerID,
		Type:      models.AuctionEndedNotification,
		Title:     "Your auction has ended successfully",
		Message:   fmt.Sprintf("Your auction for %q has ended with a winning bid of $%s. The bid has been automatically accepted.", params.Title, params.Amount),
		AuctionID: &params.AuctionID,
		Priority:  models.HighPriority,
		CreatedAt: now,
	}
	if err = insertNotificationTx(ctx, tx, ended); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// EndWithoutBids closes an active auction that received no bids.
func (r *PostgresAuctionRepository) EndWithoutBids(ctx context.Context, auctionID, ownerID, title string) (bool, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE auctions SET status = 'ended' WHERE id = $1 AND status = 'active'`, auctionID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	ended := models.Notification{
		ID:        uuid.New().String(),
		UserID:    ownerID,
		Type:      models.AuctionEndedNotification,
		Title:     "Your auction has ended",
		Message:   fmt.Sprintf("Your auction for %q has ended with no bids.", title),
		AuctionID: &auctionID,
		Priority:  models.MediumPriority,
		CreatedAt: time.Now().UTC(),
	}
	if err = insertNotificationTx(ctx, tx, ended); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// ArchiveAuction cancels a draft or active auction.
func (r *PostgresAuctionRepository) ArchiveAuction(ctx context.Context, auctionID string) (bool, error) {
	tag, err := r.DB.Exec(ctx,
		`UPDATE auctions SET status = 'cancelled' WHERE id = $1 AND status IN ('draft', 'active')`, auctionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteAuction hard-deletes a terminal auction and cascades its bids.
func (r *PostgresAuctionRepository) DeleteAuction(ctx context.Context, auctionID string) (bool, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx, `DELETE FROM bids WHERE auction_id = $1`, auctionID); err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx,
		`DELETE FROM auctions WHERE id = $1 AND status IN ('ended', 'cancelled')`, auctionID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	return true, tx.Commit(ctx)
}

func insertNotificationTx(ctx context.Context, tx pgx.Tx, n models.Notification) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, auction_id, request_id, is_read, priority, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.AuctionID, n.RequestID, n.IsRead, n.Priority, n.CreatedAt)
	return err
}

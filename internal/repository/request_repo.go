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
)

// ApproveRequestParams carries the admin's schedule for an approved request.
// The auction passed in is fully populated by the service layer.
type ApproveRequestParams struct {
	RequestID  string
	AdminID    string
	AdminNotes string
	Auction    *models.Auction
	ApprovedAt time.Time
}

// RejectRequestParams carries an admin rejection.
type RejectRequestParams struct {
	RequestID  string
	AdminID    string
	AdminNotes string
	RejectedAt time.Time
}

// RequestRepository stores auction requests and applies the admin decision
// transactionally together with the auction creation and the requester
// notification.
type RequestRepository interface {
	CreateRequest(ctx context.Context, request *models.AuctionRequest) error
	GetRequest(ctx context.Context, requestID string) (*models.AuctionRequest, error)
	ListPending(ctx context.Context) ([]models.AuctionRequest, error)
	ApproveRequest(ctx context.Context, params ApproveRequestParams) (bool, error)
	RejectRequest(ctx context.Context, params RejectRequestParams) (bool, error)
}

// PostgresRequestRepository implements RequestRepository on pgx.
type PostgresRequestRepository struct {
	DB *pgxpool.Pool
}

func NewPostgresRequestRepository(db *pgxpool.Pool) *PostgresRequestRepository {
	return &PostgresRequestRepository{DB: db}
}

const requestColumns = `id, art_piece_id, requester_id, title, description, status, admin_notes,
	approved_by, approved_at, rejected_by, rejected_at, auction_id, created_at`

// CreateRequest inserts a new pending auction request.
func (r *PostgresRequestRepository) CreateRequest(ctx context.Context, request *models.AuctionRequest) error {
	insertQuery := `INSERT INTO auction_requests (` + requestColumns + `)
	               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		request.ID,
		request.ArtPieceID,
		request.RequesterID,
		request.Title,
		request.Description,
		request.Status,
		request.AdminNotes,
		request.ApprovedBy,
		request.ApprovedAt,
		request.RejectedBy,
		request.RejectedAt,
		request.AuctionID,
		request.CreatedAt)
	return err
}

// GetRequest returns the request or nil when no such record exists.
func (r *PostgresRequestRepository) GetRequest(ctx context.Context, requestID string) (*models.AuctionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM auction_requests WHERE id = $1`
	request, err := scanRequest(r.DB.QueryRow(ctx, query, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return request, nil
}

// ListPending returns all requests awaiting an admin decision, newest first.
func (r *PostgresRequestRepository) ListPending(ctx context.Context) ([]models.AuctionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM auction_requests WHERE status = 'pending' ORDER BY created_at DESC`
	rows, err := r.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.AuctionRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}
	return requests, rows.Err()
}

// ApproveRequest creates the auction, marks the request approved, and
// notifies the requester, all in one transaction. The status UPDATE is
// guarded on the request still being pending, so two racing approvals
// cannot both insert an auction; returns false when the guard did not
// match.
func (r *PostgresRequestRepository) ApproveRequest(ctx context.Context, params ApproveRequestParams) (bool, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin approval transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	auction := params.Auction
	tag, err := tx.Exec(ctx,
		`UPDATE auction_requests
		 SET status = 'approved', auction_id = $2, admin_notes = $3, approved_by = $4, approved_at = $5
		 WHERE id = $1 AND status = 'pending'`,
		params.RequestID, auction.ID, params.AdminNotes, params.AdminID, params.ApprovedAt)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO auctions (`+auctionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		auction.ID, auction.ArtPieceID, auction.AuctioneerID, auction.Title, auction.Description,
		auction.StartingPrice, auction.CurrentBid, auction.CurrentBidderID, auction.Status,
		auction.StartTime, auction.EndTime, auction.IsFixedEndTime, auction.BidCount, auction.IsLocked,
		auction.FlaggedCount, auction.WinnerAccepted, auction.PaymentDeadline, auction.ShippingDeadline,
		auction.RequestID, auction.CreatedAt)
	if err != nil {
		return false, err
	}

	approved := models.Notification{
		ID:     uuid.New().String(),
		UserID: auction.AuctioneerID,
		Type:   models.RequestApprovedNotification,
		Title:  "Auction Request Approved",
		Message: fmt.Sprintf("Your auction request %q has been approved and scheduled. Start: %s, End: %s",
			auction.Title, auction.StartTime.Format(time.RFC1123), auction.EndTime.Format(time.RFC1123)),
		AuctionID: &auction.ID,
		RequestID: &params.RequestID,
		Priority:  models.HighPriority,
		CreatedAt: params.ApprovedAt,
	}
	if err = insertNotificationTx(ctx, tx, approved); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// RejectRequest marks a pending request rejected and notifies the requester.
// Returns false when the request was not pending.
func (r *PostgresRequestRepository) RejectRequest(ctx context.Context, params RejectRequestParams) (bool, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var requesterID, title string
	err = tx.QueryRow(ctx,
		`UPDATE auction_requests
		 SET status = 'rejected', admin_notes = $2, rejected_by = $3, rejected_at = $4
		 WHERE id = $1 AND status = 'pending'
		 RETURNING requester_id, title`,
		params.RequestID, params.AdminNotes, params.AdminID, params.RejectedAt).Scan(&requesterID, &title)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	rejected := models.Notification{
		ID:        uuid.New().String(),
		UserID:    requesterID,
		Type:      models.RequestRejectedNotification,
		Title:     "Auction Request Rejected",
		Message:   fmt.Sprintf("Your auction request %q has been rejected. Reason: %s", title, params.AdminNotes),
		RequestID: &params.RequestID,
		Priority:  models.MediumPriority,
		CreatedAt: params.RejectedAt,
	}
	if err = insertNotificationTx(ctx, tx, rejected); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func scanRequest(row pgx.Row) (*models.AuctionRequest, error) {
	var request models.AuctionRequest
	err := row.Scan(
		&request.ID,
		&request.ArtPieceID,
		&request.RequesterID,
		&request.Title,
		&request.Description,
		&request.Status,
		&request.AdminNotes,
		&request.ApprovedBy,
		&request.ApprovedAt,
		&request.RejectedBy,
		&request.RejectedAt,
		&request.AuctionID,
		&request.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

package repository

import (
	"context"

	"github.com/piggybanx/auction-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BidRepository reads the bid ledger. Bids are only ever written through
// AuctionRepository.RecordBid so the winning-bid bookkeeping stays atomic
// with the auction update.
type BidRepository interface {
	ListAuctionBids(ctx context.Context, auctionID string, limit int) ([]models.Bid, error)
	ListBidderBids(ctx context.Context, bidderID string) ([]models.Bid, error)
}

// PostgresBidRepository implements BidRepository on pgx.
type PostgresBidRepository struct {
	DB *pgxpool.Pool
}

func NewPostgresBidRepository(db *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{DB: db}
}

// ListAuctionBids returns the most recent bids for an auction.
func (r *PostgresBidRepository) ListAuctionBids(ctx context.Context, auctionID string, limit int) ([]models.Bid, error) {
	query := `SELECT id, auction_id, bidder_id, amount, placed_at, is_valid, is_winning
	          FROM bids WHERE auction_id = $1 ORDER BY placed_at DESC LIMIT $2`
	rows, err := r.DB.Query(ctx, query, auctionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBids(rows)
}

// ListBidderBids returns all bids placed by one user, newest first.
func (r *PostgresBidRepository) ListBidderBids(ctx context.Context, bidderID string) ([]models.Bid, error) {
	query := `SELECT id, auction_id, bidder_id, amount, placed_at, is_valid, is_winning
	          FROM bids WHERE bidder_id = $1 ORDER BY placed_at DESC`
	rows, err := r.DB.Query(ctx, query, bidderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBids(rows)
}

func collectBids(rows pgx.Rows) ([]models.Bid, error) {
	var bids []models.Bid
	for rows.Next() {
		var bid models.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.AuctionID,
			&bid.BidderID,
			&bid.Amount,
			&bid.PlacedAt,
			&bid.IsValid,
			&bid.IsWinning); err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

package repository

import (
	"context"
	"errors"

	"github.com/piggybanx/auction-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionRepository reads sale transactions. Rows are created only by
// AuctionRepository.CompleteAuction.
type TransactionRepository interface {
	GetByAuction(ctx context.Context, auctionID string) (*models.Transaction, error)
}

// PostgresTransactionRepository implements TransactionRepository on pgx.
type PostgresTransactionRepository struct {
	DB *pgxpool.Pool
}

func NewPostgresTransactionRepository(db *pgxpool.Pool) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{DB: db}
}

// GetByAuction returns the sale transaction for an auction or nil.
func (r *PostgresTransactionRepository) GetByAuction(ctx context.Context, auctionID string) (*models.Transaction, error) {
	var t models.Transaction
	query := `SELECT id, auction_id, buyer_id, seller_id, amount, status, payment_method, tracking_number, created_at
	          FROM transactions WHERE auction_id = $1`
	err := r.DB.QueryRow(ctx, query, auctionID).Scan(
		&t.ID,
		&t.AuctionID,
		&t.BuyerID,
		&t.SellerID,
		&t.Amount,
		&t.Status,
		&t.PaymentMethod,
		&t.TrackingNumber,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

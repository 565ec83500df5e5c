package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/piggybanx/auction-service/internal/models"
	"github.com/piggybanx/auction-service/internal/repository"
	"github.com/piggybanx/auction-service/internal/services"
	"github.com/piggybanx/auction-service/internal/utils"
)

// BidHandler serves the bid placement and bid history endpoints.
type BidHandler struct {
	Service *services.BiddingService
	Bids    repository.BidRepository
	Logger  *log.Logger
	Timeout time.Duration
}

func NewBidHandler(service *services.BiddingService, bids repository.BidRepository, logger *log.Logger, timeout time.Duration) *BidHandler {
	return &BidHandler{
		Service: service,
		Bids:    bids,
		Logger:  logger,
		Timeout: timeout,
	}
}

// PlaceBid handles POST /api/auctions/{auctionId}/bids.
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bidderID := r.Header.Get("X-User-Id")
	if bidderID == "" {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}

	auctionID := r.PathValue("auctionId")
	var bidReq models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&bidReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.PlaceBid(ctx, auctionID, bidderID, bidReq.Amount)
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, statusForBidError(err), err.Error())
		return
	}

	utils.SendJSON(w, http.StatusOK, result)
}

// GetAuctionBids handles GET /api/auctions/{auctionId}/bids.
func (h *BidHandler) GetAuctionBids(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bids, err := h.Bids.ListAuctionBids(ctx, r.PathValue("auctionId"), 10)
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to load bids")
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}

	utils.SendJSON(w, http.StatusOK, bids)
}

// GetUserBids handles GET /api/bids/my.
func (h *BidHandler) GetUserBids(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bidderID := r.Header.Get("X-User-Id")
	if bidderID == "" {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}

	bids, err := h.Bids.ListBidderBids(ctx, bidderID)
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to load bids")
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}

	utils.SendJSON(w, http.StatusOK, bids)
}

// statusForBidError maps each bid validation failure to an HTTP status so
// the UI can show the message as-is.
func statusForBidError(err error) int {
	switch {
	case errors.Is(err, services.ErrAuctionNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrBlacklisted), errors.Is(err, services.ErrOwnAuctionBid):
		return http.StatusForbidden
	case errors.Is(err, services.ErrAuctionLocked):
		return http.StatusConflict
	case errors.Is(err, services.ErrAuctionNotActive),
		errors.Is(err, services.ErrBidTooLow),
		errors.Is(err, services.ErrAuctionExpired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

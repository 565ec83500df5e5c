package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/piggybanx/auction-service/internal/models"
	"github.com/piggybanx/auction-service/internal/repository"
	"github.com/piggybanx/auction-service/internal/services"
	"github.com/piggybanx/auction-service/internal/utils"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuctionHandler serves auction reads, admin decisions, and the manual
// sweep trigger.
type AuctionHandler struct {
	Lifecycle    *services.LifecycleService
	Auctions     repository.AuctionRepository
	Transactions repository.TransactionRepository
	Requests     repository.RequestRepository
	Logger       *log.Logger
	Timeout      time.Duration
	dbPool       *pgxpool.Pool
}

func NewAuctionHandler(
	lifecycle *services.LifecycleService,
	auctions repository.AuctionRepository,
	transactions repository.TransactionRepository,
	requests repository.RequestRepository,
	logger *log.Logger,
	timeout time.Duration,
	dbPool *pgxpool.Pool,
) *AuctionHandler {
	return &AuctionHandler{
		Lifecycle:    lifecycle,
		Auctions:     auctions,
		Transactions: transactions,
		Requests:     requests,
		Logger:       logger,
		Timeout:      timeout,
		dbPool:       dbPool,
	}
}

// GetActiveAuctions handles GET /api/auctions.
func (h *AuctionHandler) GetActiveAuctions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	auctions, err := h.Auctions.ListByStatus(ctx, models.ActiveAuction)
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to load auctions")
		return
	}
	if auctions == nil {
		auctions = []models.Auction{}
	}

	utils.SendJSON(w, http.StatusOK, auctions)
}

// GetAuction handles GET /api/auctions/{auctionId}.
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	auction, err := h.Auctions.GetAuction(ctx, r.PathValue("auctionId"))
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to load auction")
		return
	}
	if auction == nil {
		utils.SendErrorResponse(w, http.StatusNotFound, services.ErrAuctionNotFound.Error())
		return
	}

	utils.SendJSON(w, http.StatusOK, auction)
}

// GetAuctionTransaction handles GET /api/auctions/{auctionId}/transaction.
func (h *AuctionHandler) GetAuctionTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	transaction, err := h.Transactions.GetByAuction(ctx, r.PathValue("auctionId"))
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to load transaction")
		return
	}
	if transaction == nil {
		utils.SendErrorResponse(w, http.StatusNotFound, "transaction not found")
		return
	}

	utils.SendJSON(w, http.StatusOK, transaction)
}

// ListAuctionsForAdmin handles GET /api/admin/auctions?status=a,b.
func (h *AuctionHandler) ListAuctionsForAdmin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if !h.requireAdmin(ctx, w, r) {
		return
	}

	statuses := []string{
		string(models.DraftAuction), string(models.ActiveAuction), string(models.EndedAuction),
		string(models.CancelledAuction), string(models.CompletedAuction),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		statuses = strings.Split(raw, ",")
	}

	auctions, err := h.Auctions.ListByStatuses(ctx, statuses)
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to load auctions")
		return
	}
	if auctions == nil {
		auctions = []models.Auction{}
	}

	utils.SendJSON(w, http.StatusOK, auctions)
}

// CreateRequest handles POST /api/requests/new.
func (h *AuctionHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	requesterID := r.Header.Get("X-User-Id")
	if requesterID == "" {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body struct {
		ArtPieceID  string `json:"artPieceId"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	request, err := h.Lifecycle.CreateAuctionRequest(ctx, requesterID, body.ArtPieceID, body.Title, body.Description)
	if err != nil {
		h.sendServiceError(w, err, "failed to create auction request")
		return
	}

	utils.SendJSON(w, http.StatusOK, request)
}

// ListPendingRequests handles GET /api/requests/pending.
func (h *AuctionHandler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if !h.requireAdmin(ctx, w, r) {
		return
	}

	requests, err := h.Requests.ListPending(ctx)
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to load requests")
		return
	}
	if requests == nil {
		requests = []models.AuctionRequest{}
	}

	utils.SendJSON(w, http.StatusOK, requests)
}

// ApproveRequest handles POST /api/requests/{requestId}/approve.
func (h *AuctionHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	adminID := r.Header.Get("X-User-Id")
	if !h.requireAdmin(ctx, w, r) {
		return
	}

	var approval models.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&approval); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !approval.EndTime.After(approval.StartTime) {
		utils.SendErrorResponse(w, http.StatusBadRequest, "endTime must be after startTime")
		return
	}

	auctionID, err := h.Lifecycle.ApproveAndScheduleAuction(ctx, r.PathValue("requestId"), adminID, approval)
	if err != nil {
		h.sendServiceError(w, err, "failed to approve request")
		return
	}

	utils.SendJSON(w, http.StatusOK, map[string]string{"auctionId": auctionID})
}

// RejectRequest handles POST /api/requests/{requestId}/reject.
func (h *AuctionHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	adminID := r.Header.Get("X-User-Id")
	if !h.requireAdmin(ctx, w, r) {
		return
	}

	var body models.RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.AdminNotes == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "adminNotes is required")
		return
	}

	if err := h.Lifecycle.RejectAuctionRequest(ctx, r.PathValue("requestId"), adminID, body.AdminNotes); err != nil {
		h.sendServiceError(w, err, "failed to reject request")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ArchiveAuction handles POST /api/auctions/{auctionId}/archive.
func (h *AuctionHandler) ArchiveAuction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if !h.requireAdmin(ctx, w, r) {
		return
	}

	if err := h.Lifecycle.ArchiveAuction(ctx, r.PathValue("auctionId")); err != nil {
		h.sendServiceError(w, err, "failed to archive auction")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAuction handles DELETE /api/auctions/{auctionId}.
func (h *AuctionHandler) DeleteAuction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if !h.requireAdmin(ctx, w, r) {
		return
	}

	if err := h.Lifecycle.DeleteAuction(ctx, r.PathValue("auctionId")); err != nil {
		h.sendServiceError(w, err, "failed to delete auction")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RunSweep handles POST /api/sweep, the manual reconciliation trigger.
func (h *AuctionHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if !h.requireAdmin(ctx, w, r) {
		return
	}

	processed, err := h.Lifecycle.RunSweep(ctx)
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	utils.SendJSON(w, http.StatusOK, map[string]int{"processed": processed})
}

func (h *AuctionHandler) requireAdmin(ctx context.Context, w http.ResponseWriter, r *http.Request) bool {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return false
	}

	isAdmin, err := utils.CheckUserIsAdmin(ctx, h.dbPool, userID)
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to check admin access")
		return false
	}
	if !isAdmin {
		utils.SendErrorResponse(w, http.StatusForbidden, "Admin access required")
		return false
	}
	return true
}

func (h *AuctionHandler) sendServiceError(w http.ResponseWriter, err error, fallback string) {
	h.Logger.Println(err)

	var errorResponse *models.ErrorResponse
	if errors.As(err, &errorResponse) {
		utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
		return
	}

	switch {
	case errors.Is(err, services.ErrRequestNotFound), errors.Is(err, services.ErrAuctionNotFound):
		utils.SendErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrRequestNotPending),
		errors.Is(err, services.ErrAuctionNotArchivable),
		errors.Is(err, services.ErrAuctionNotDeletable):
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
	default:
		utils.SendErrorResponse(w, http.StatusInternalServerError, fallback)
	}
}

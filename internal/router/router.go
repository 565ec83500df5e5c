package router

import (
	"net/http"

	"github.com/piggybanx/auction-service/internal/handlers"
)

func InitRoutes(auctionHandler *handlers.AuctionHandler, bidHandler *handlers.BidHandler, notificationHandler *handlers.NotificationHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ping", handlers.PingHandler)

	mux.HandleFunc("GET /api/auctions", auctionHandler.GetActiveAuctions)
	mux.HandleFunc("GET /api/auctions/{auctionId}", auctionHandler.GetAuction)
	mux.HandleFunc("GET /api/auctions/{auctionId}/transaction", auctionHandler.GetAuctionTransaction)
	mux.HandleFunc("POST /api/auctions/{auctionId}/archive", auctionHandler.ArchiveAuction)
	mux.HandleFunc("DELETE /api/auctions/{auctionId}", auctionHandler.DeleteAuction)

	mux.HandleFunc("POST /api/auctions/{auctionId}/bids", bidHandler.PlaceBid)
	mux.HandleFunc("GET /api/auctions/{auctionId}/bids", bidHandler.GetAuctionBids)
	mux.HandleFunc("GET /api/bids/my", bidHandler.GetUserBids)

	mux.HandleFunc("POST /api/requests/new", auctionHandler.CreateRequest)
	mux.HandleFunc("GET /api/requests/pending", auctionHandler.ListPendingRequests)
	mux.HandleFunc("POST /api/requests/{requestId}/approve", auctionHandler.ApproveRequest)
	mux.HandleFunc("POST /api/requests/{requestId}/reject", auctionHandler.RejectRequest)

	mux.HandleFunc("GET /api/admin/auctions", auctionHandler.ListAuctionsForAdmin)
	mux.HandleFunc("POST /api/sweep", auctionHandler.RunSweep)

	mux.HandleFunc("GET /api/notifications", notificationHandler.GetUserNotifications)
	mux.HandleFunc("POST /api/notifications/{notificationId}/read", notificationHandler.MarkNotificationRead)

	return mux
}

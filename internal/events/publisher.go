package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	bidChannel         = "auction.bids"
	lifecycleChannel   = "auction.lifecycle"
	winnerEmailSubject = "auction.winner_email"

	publishTimeout = 5 * time.Second
)

// BidEvent is broadcast after a bid commits.
type BidEvent struct {
	AuctionID  string          `json:"auctionId"`
	BidderID   string          `json:"bidderId"`
	Amount     decimal.Decimal `json:"amount"`
	BidCount   int             `json:"bidCount"`
	NewEndTime time.Time       `json:"newEndTime"`
	Timestamp  time.Time       `json:"timestamp"`
}

// LifecycleEvent is broadcast after a status transition commits.
type LifecycleEvent struct {
	AuctionID string    `json:"auctionId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher fans auction events out to Redis pub/sub (live UI broadcast) and
// NATS (downstream workers). Everything here is best-effort: failures are
// logged and never propagated to the write path.
type Publisher struct {
	redis  *redis.Client
	nats   *nats.Conn
	logger *log.Logger
}

func NewPublisher(redisClient *redis.Client, natsConn *nats.Conn, logger *log.Logger) *Publisher {
	return &Publisher{
		redis:  redisClient,
		nats:   natsConn,
		logger: logger,
	}
}

// PublishBidEvent broadcasts a committed bid off the write path.
func (p *Publisher) PublishBidEvent(event BidEvent) {
	go p.publish(bidChannel, fmt.Sprintf("bid.events.%s", event.AuctionID), event)
}

// PublishLifecycleEvent broadcasts a committed status transition.
func (p *Publisher) PublishLifecycleEvent(event LifecycleEvent) {
	go p.publish(lifecycleChannel, fmt.Sprintf("auction.lifecycle.%s", event.AuctionID), event)
}

// PublishWinnerEmail asks the email worker to notify an auction winner.
func (p *Publisher) PublishWinnerEmail(auctionID string) {
	if p.nats == nil {
		return
	}
	go func() {
		payload, err := json.Marshal(map[string]string{"auctionId": auctionID})
		if err != nil {
			p.logger.Printf("events: failed to marshal winner email request: %v", err)
			return
		}
		if err := p.nats.Publish(winnerEmailSubject, payload); err != nil {
			p.logger.Printf("events: failed to publish winner email for auction %s: %v", auctionID, err)
		}
	}()
}

func (p *Publisher) publish(channel, subject string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Printf("events: failed to marshal event for %s: %v", channel, err)
		return
	}

	if p.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.redis.Publish(ctx, channel, payload).Err(); err != nil {
			p.logger.Printf("events: failed to publish to redis channel %s: %v", channel, err)
		}
		cancel()
	}

	if p.nats != nil {
		if err := p.nats.Publish(subject, payload); err != nil {
			p.logger.Printf("events: failed to publish to nats subject %s: %v", subject, err)
		}
	}
}

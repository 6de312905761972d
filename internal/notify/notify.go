// Package notify enqueues the fire-and-forget events the notification
// service consumes. Publishing happens strictly after the transaction
// that produced the event has committed; a publish failure is logged
// and never propagated, so notification trouble cannot roll back a
// committed vote or resolution.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the pub/sub channel the notification consumer subscribes to.
const Channel = "civicwatch:notifications"

// Event type tags on published payloads.
const (
	TypeVoteCast       = "vote_cast"
	TypeReportResolved = "report_resolved"
	TypeLeveledUp      = "leveled_up"
)

type VoteCastEvent struct {
	Type       string `json:"type"`
	OwnerID    string `json:"ownerId"`
	EntityKind string `json:"entityKind"`
	EntityID   string `json:"entityId"`
	Value      int    `json:"value"`
}

type ReportResolvedEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	ReportID string `json:"reportId"`
	Points   int    `json:"points"`
	NewLevel int    `json:"newLevel"`
}

type LeveledUpEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	NewLevel  int    `json:"newLevel"`
	LevelName string `json:"levelName"`
}

// Publisher publishes events to Redis pub/sub.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewPublisher(redisURL string, logger *zap.Logger) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Publisher{client: client, logger: logger}, nil
}

// NewPublisherWithClient wraps an existing Redis client (used by tests).
func NewPublisherWithClient(client *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

func (p *Publisher) VoteCast(ctx context.Context, ownerID string, entityKind, entityID string, value int) {
	p.publish(ctx, VoteCastEvent{
		Type:       TypeVoteCast,
		OwnerID:    ownerID,
		EntityKind: entityKind,
		EntityID:   entityID,
		Value:      value,
	})
}

func (p *Publisher) ReportResolved(ctx context.Context, userID, reportID string, points, newLevel int) {
	p.publish(ctx, ReportResolvedEvent{
		Type:     TypeReportResolved,
		UserID:   userID,
		ReportID: reportID,
		Points:   points,
		NewLevel: newLevel,
	})
}

func (p *Publisher) LeveledUp(ctx context.Context, userID string, newLevel int, levelName string) {
	p.publish(ctx, LeveledUpEvent{
		Type:      TypeLeveledUp,
		UserID:    userID,
		NewLevel:  newLevel,
		LevelName: levelName,
	})
}

func (p *Publisher) publish(ctx context.Context, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("notify: marshal event", zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, Channel, payload).Err(); err != nil {
		p.logger.Warn("notify: publish event", zap.Error(err))
	}
}

// LogSink satisfies the same contract as Publisher when Redis is not
// configured: events are logged and dropped.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) VoteCast(_ context.Context, ownerID string, entityKind, entityID string, value int) {
	s.logger.Info("notify: vote cast",
		zap.String("ownerId", ownerID),
		zap.String("entityKind", entityKind),
		zap.String("entityId", entityID),
		zap.Int("value", value),
	)
}

func (s *LogSink) ReportResolved(_ context.Context, userID, reportID string, points, newLevel int) {
	s.logger.Info("notify: report resolved",
		zap.String("userId", userID),
		zap.String("reportId", reportID),
		zap.Int("points", points),
		zap.Int("newLevel", newLevel),
	)
}

func (s *LogSink) LeveledUp(_ context.Context, userID string, newLevel int, levelName string) {
	s.logger.Info("notify: leveled up",
		zap.String("userId", userID),
		zap.Int("newLevel", newLevel),
		zap.String("levelName", levelName),
	)
}

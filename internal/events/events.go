// Package events implements the timeline event publisher: a best-effort,
// at-most-once, fire-and-forget broadcast of timeline_updated events over
// Redis pub/sub. Publisher failure never fails the mutation it follows —
// Publish logs the error and returns without reporting it, treating
// delivery as advisory.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/logger"
)

// TimelineUpdated is the one event type the publisher emits, published
// after a mutating batch commits. Reads never emit events.
type TimelineUpdated struct {
	ProjectID  string               `json:"project_id"`
	SequenceID string               `json:"sequence_id"`
	Source     domain.OperationSource `json:"source"`
	Version    int                  `json:"version"`
	UserID     string               `json:"user_id"`
	UserName   string               `json:"user_name,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// Publisher is the interface services depend on; ProjectID is the channel
// subscribers key their subscription on.
type Publisher interface {
	Publish(ctx context.Context, event TimelineUpdated)
}

// RedisPublisher fans out over Redis pub/sub, one channel per project.
type RedisPublisher struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisPublisher(log *logger.Logger, rdb *goredis.Client) *RedisPublisher {
	return &RedisPublisher{log: log.With("service", "TimelineEventPublisher"), rdb: rdb}
}

func channelFor(projectID string) string {
	return fmt.Sprintf("timeline:%s", projectID)
}

// Publish is fire-and-forget: any error is logged, never returned, and
// never blocks the caller's commit path.
func (p *RedisPublisher) Publish(ctx context.Context, event TimelineUpdated) {
	if p == nil || p.rdb == nil {
		return
	}
	raw, err := json.Marshal(event)
	if err != nil {
		p.log.Warn("marshal timeline_updated event failed", "error", err, "project_id", event.ProjectID)
		return
	}
	if err := p.rdb.Publish(ctx, channelFor(event.ProjectID), raw).Err(); err != nil {
		p.log.Warn("publish timeline_updated event failed", "error", err, "project_id", event.ProjectID)
	}
}

// Subscriber lets a reader (SSE/websocket handler) follow one project's
// events via a dedicated pub/sub connection.
type Subscriber struct {
	rdb *goredis.Client
}

func NewSubscriber(rdb *goredis.Client) *Subscriber {
	return &Subscriber{rdb: rdb}
}

// Subscribe forwards every TimelineUpdated for projectID to onEvent until
// ctx is canceled. Malformed payloads are dropped rather than surfaced.
func (s *Subscriber) Subscribe(ctx context.Context, projectID string, onEvent func(TimelineUpdated)) error {
	sub := s.rdb.Subscribe(ctx, channelFor(projectID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe to project channel: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var event TimelineUpdated
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					continue
				}
				onEvent(event)
			}
		}
	}()
	return nil
}

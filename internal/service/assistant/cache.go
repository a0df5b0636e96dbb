package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"soilchat/internal/models"
	"soilchat/internal/redis"

	"go.uber.org/zap"
)

const (
	historyKeyPrefix    = "soilchat:history:"
	generationKeyPrefix = "soilchat:history-gen:"
	// generationTTL only has to outlive one history read
	generationTTL = 24 * time.Hour
)

// historyCache keeps History results per (session, limit) in one redis hash
// per session so a single DEL drops every cached window. A nil cache is a
// no-op.
type historyCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func historyKey(sessionID string) string {
	return historyKeyPrefix + sessionID
}

// generationKey is bumped on every append and clear. Cache fills watch it.
func generationKey(sessionID string) string {
	return generationKeyPrefix + sessionID
}

func (c *historyCache) load(ctx context.Context, sessionID string, limit int) ([]*models.Message, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.HGet(ctx, historyKey(sessionID), strconv.Itoa(limit))
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			c.logger.Debug("history cache read failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, false
	}
	var messages []*models.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		c.logger.Debug("history cache decode failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, false
	}
	return messages, true
}

// fill runs query and caches its result unless the session was invalidated
// while query ran. Cache failures never fail the read.
func (c *historyCache) fill(ctx context.Context, sessionID string, limit int, query func() ([]*models.Message, error)) ([]*models.Message, error) {
	if c == nil {
		return query()
	}
	var (
		messages []*models.Message
		queried  bool
		queryErr error
	)
	err := c.client.WatchHSet(ctx, generationKey(sessionID), historyKey(sessionID), strconv.Itoa(limit), c.ttl, func() ([]byte, error) {
		messages, queryErr = query()
		queried = true
		if queryErr != nil {
			return nil, queryErr
		}
		return json.Marshal(messages)
	})
	switch {
	case queried && queryErr != nil:
		return nil, queryErr
	case queried:
		if err != nil && !errors.Is(err, redis.ErrConflict) {
			c.logger.Debug("history cache write failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return messages, nil
	default:
		// redis failed before the query started
		c.logger.Debug("history cache unavailable", zap.String("session_id", sessionID), zap.Error(err))
		return query()
	}
}

func (c *historyCache) invalidate(ctx context.Context, sessionID string) {
	if c == nil {
		return
	}
	if err := c.client.Bump(ctx, generationKey(sessionID), generationTTL, historyKey(sessionID)); err != nil {
		c.logger.Warn("history cache invalidate failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

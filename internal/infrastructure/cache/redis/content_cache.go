package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

const keyPrefix = "readiness:document-content:"

// ContentCache keeps resolved document content keyed by document id.
type ContentCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewContentCache(rdb *goredis.Client, ttl time.Duration) *ContentCache {
	return &ContentCache{rdb: rdb, ttl: ttl}
}

// NewClient accepts either a redis:// URL or a bare host:port address.
func NewClient(ctx context.Context, addr string) (*goredis.Client, error) {
	var rdb *goredis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := goredis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb = goredis.NewClient(opt)
	} else {
		rdb = goredis.NewClient(&goredis.Options{Addr: addr})
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (c *ContentCache) GetContent(ctx context.Context, documentID string) (domain.DocumentContent, bool, error) {
	raw, err := c.rdb.Get(ctx, contentKey(documentID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.DocumentContent{}, false, nil
	}
	if err != nil {
		return domain.DocumentContent{}, false, fmt.Errorf("redis get: %w", err)
	}

	var content domain.DocumentContent
	if err := json.Unmarshal(raw, &content); err != nil || !content.Resolved() {
		// Corrupt entries are dropped and treated as a miss.
		_ = c.rdb.Del(ctx, contentKey(documentID)).Err()
		return domain.DocumentContent{}, false, nil
	}
	return content, true, nil
}

func (c *ContentCache) SetContent(ctx context.Context, documentID string, content domain.DocumentContent) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	if err := c.rdb.Set(ctx, contentKey(documentID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func contentKey(documentID string) string {
	return keyPrefix + documentID
}

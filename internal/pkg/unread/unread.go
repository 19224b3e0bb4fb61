package unread

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "campusloop:chat:unread:"

// Tracker 用 Redis 记录"会话对某个用户是否有未读消息"。
//
// 这是一个尽力而为的标记：Redis 数据丢失只会让未读小红点消失，
// 不影响消息本身，所以不落库。
type Tracker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTracker(rdb *redis.Client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Tracker{
		rdb: rdb,
		ttl: ttl,
	}
}

// MarkUnread 在 userID 收到新消息时打上未读标记。
func (t *Tracker) MarkUnread(ctx context.Context, chatID, userID uint) error {
	if t == nil || t.rdb == nil {
		return nil
	}
	if err := t.rdb.Set(ctx, key(chatID, userID), "1", t.ttl).Err(); err != nil {
		return fmt.Errorf("unread set: %w", err)
	}
	return nil
}

// MarkRead 在 userID 拉取过会话消息后清除标记。
func (t *Tracker) MarkRead(ctx context.Context, chatID, userID uint) error {
	if t == nil || t.rdb == nil {
		return nil
	}
	if err := t.rdb.Del(ctx, key(chatID, userID)).Err(); err != nil {
		return fmt.Errorf("unread del: %w", err)
	}
	return nil
}

// IsUnread 查询 userID 在该会话是否有未读消息。
func (t *Tracker) IsUnread(ctx context.Context, chatID, userID uint) (bool, error) {
	if t == nil || t.rdb == nil {
		return false, nil
	}
	n, err := t.rdb.Exists(ctx, key(chatID, userID)).Result()
	if err != nil {
		return false, fmt.Errorf("unread exists: %w", err)
	}
	return n > 0, nil
}

func key(chatID, userID uint) string {
	return fmt.Sprintf("%s%d:%d", keyPrefix, chatID, userID)
}

package repository

import (
	"context"
	"encoding/json"

	"github.com/apiwatch/apiwatch/internal/model"
)

// RedisLiveFeed keeps the most recent persisted events in a capped Redis
// list so the dashboard's live view survives collector restarts.
type RedisLiveFeed struct {
	client  *RedisClient
	listKey string
	listMax int
}

func NewRedisLiveFeed(client *RedisClient, listKey string, listMax int) *RedisLiveFeed {
	if listKey == "" {
		listKey = "live_events"
	}
	if listMax <= 0 {
		listMax = 1000
	}
	return &RedisLiveFeed{
		client:  client,
		listKey: listKey,
		listMax: listMax,
	}
}

func (r *RedisLiveFeed) Push(ctx context.Context, e *model.Event) error {
	if e == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := r.client.Client.Pipeline()
	pipe.LPush(ctx, r.listKey, payload)
	pipe.LTrim(ctx, r.listKey, 0, int64(r.listMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisLiveFeed) Recent(ctx context.Context, limit int) ([]*model.Event, error) {
	if limit <= 0 || limit > r.listMax {
		limit = 100
	}
	raw, err := r.client.Client.LRange(ctx, r.listKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	events := make([]*model.Event, 0, len(raw))
	for _, item := range raw {
		var e model.Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		events = append(events, &e)
	}
	return events, nil
}

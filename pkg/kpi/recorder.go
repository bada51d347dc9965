// Package kpi keeps daily chat usage counters in redis.
package kpi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rag-chat-be/pkg/events"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "kpi"
	dayLayout = "2006-01-02"
	// Counters outlive the day so late dashboards can still read them.
	retention = 90 * 24 * time.Hour
)

// Daily is one day of usage.
type Daily struct {
	Date                string  `json:"date"`
	UniqueUsers         int64   `json:"unique_users"`
	Interactions        int64   `json:"interactions"`
	NewSessions         int64   `json:"new_sessions"`
	AverageResponseTime float64 `json:"average_response_time"`
}

type Recorder struct {
	rdb redis.Cmdable
}

func NewRecorder(rdb redis.Cmdable) *Recorder {
	return &Recorder{rdb: rdb}
}

type dayKeys struct {
	users        string
	interactions string
	sessions     string
	responseSum  string
}

func keysFor(day time.Time) dayKeys {
	d := day.UTC().Format(dayLayout)
	return dayKeys{
		users:        fmt.Sprintf("%s:%s:users", keyPrefix, d),
		interactions: fmt.Sprintf("%s:%s:interactions", keyPrefix, d),
		sessions:     fmt.Sprintf("%s:%s:sessions", keyPrefix, d),
		responseSum:  fmt.Sprintf("%s:%s:response_seconds", keyPrefix, d),
	}
}

// Record counts one turn against the day it occurred on.
func (r *Recorder) Record(ctx context.Context, turn events.TurnRecorded) error {
	at := turn.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	k := keysFor(at)

	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if turn.UserID != "" {
			p.SAdd(ctx, k.users, turn.UserID)
		}
		p.Incr(ctx, k.interactions)
		if turn.NewSession {
			p.Incr(ctx, k.sessions)
		}
		p.IncrByFloat(ctx, k.responseSum, turn.ResponseTime)
		for _, key := range []string{k.users, k.interactions, k.sessions, k.responseSum} {
			p.Expire(ctx, key, retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record kpi: %w", err)
	}
	return nil
}

// HandleEvent adapts Record to the event subscriber; other event types are ignored.
func (r *Recorder) HandleEvent(ctx context.Context, e events.Event) error {
	if e.EventType() != events.TypeTurnRecorded {
		return nil
	}
	return r.Record(ctx, events.TurnRecordedFrom(e))
}

func (r *Recorder) Daily(ctx context.Context, day time.Time) (Daily, error) {
	k := keysFor(day)
	out := Daily{Date: day.UTC().Format(dayLayout)}

	var (
		users        *redis.IntCmd
		interactions *redis.StringCmd
		sessions     *redis.StringCmd
		responseSum  *redis.StringCmd
	)
	_, err := r.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		users = p.SCard(ctx, k.users)
		interactions = p.Get(ctx, k.interactions)
		sessions = p.Get(ctx, k.sessions)
		responseSum = p.Get(ctx, k.responseSum)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return out, fmt.Errorf("read kpi: %w", err)
	}

	out.UniqueUsers = users.Val()
	if out.Interactions, err = intOrZero(interactions); err != nil {
		return out, err
	}
	if out.NewSessions, err = intOrZero(sessions); err != nil {
		return out, err
	}
	sum, err := floatOrZero(responseSum)
	if err != nil {
		return out, err
	}
	if out.Interactions > 0 {
		out.AverageResponseTime = sum / float64(out.Interactions)
	}
	return out, nil
}

func intOrZero(cmd *redis.StringCmd) (int64, error) {
	v, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func floatOrZero(cmd *redis.StringCmd) (float64, error) {
	v, err := cmd.Float64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

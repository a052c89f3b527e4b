package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	streamField   = "event"
	readBlock     = 5 * time.Second
	readBatchSize = 100
)

// RedisDispatcher propagates events between instances through a Redis stream.
// Local handlers are invoked from a reader goroutine, including for events
// this instance published.
type RedisDispatcher struct {
	subscribers

	client redis.Cmdable
	stream string
	maxLen int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisDispatcher starts reading new entries of stream.
func NewRedisDispatcher(ctx context.Context, client redis.Cmdable, stream string, maxLen int64, logger *zap.Logger) *RedisDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	readCtx, cancel := context.WithCancel(ctx)
	d := &RedisDispatcher{
		subscribers: subscribers{logger: logger},
		client:      client,
		stream:      stream,
		maxLen:      maxLen,
		cancel:      cancel,
	}
	d.wg.Add(1)
	go d.readLoop(readCtx)
	return d
}

// Publish appends the event to the stream.
func (d *RedisDispatcher) Publish(ctx context.Context, event Event) (Event, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return Event{}, fmt.Errorf("encode event: %w", err)
	}
	id, err := d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		MaxLen: d.maxLen,
		Approx: true,
		Values: map[string]any{streamField: raw},
	}).Result()
	if err != nil {
		return Event{}, fmt.Errorf("xadd %s: %w", d.stream, err)
	}
	event.ID = id
	return event, nil
}

// Subscribe registers a handler for the given event types.
func (d *RedisDispatcher) Subscribe(handler EventHandler, types ...EventType) func() {
	return d.add(handler, types)
}

// Since replays stream entries after cursor.
func (d *RedisDispatcher) Since(ctx context.Context, cursor string) ([]Event, error) {
	if cursor == "" {
		return nil, nil
	}
	if _, _, ok := parseStreamID(cursor); !ok {
		return nil, ErrCursorExpired
	}

	oldest, err := d.client.XRangeN(ctx, d.stream, "-", "+", 1).Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", d.stream, err)
	}
	if len(oldest) == 0 {
		info, err := d.client.XInfoStream(ctx, d.stream).Result()
		if err != nil && !isNoSuchKey(err) {
			return nil, fmt.Errorf("xinfo %s: %w", d.stream, err)
		}
		if err == nil && compareStreamIDs(cursor, info.LastGeneratedID) < 0 {
			return nil, ErrCursorExpired
		}
		return nil, nil
	}
	if compareStreamIDs(cursor, oldest[0].ID) < 0 {
		return nil, ErrCursorExpired
	}

	msgs, err := d.client.XRange(ctx, d.stream, "("+cursor, "+").Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", d.stream, err)
	}
	out := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		event, err := decodeStreamMessage(msg)
		if err != nil {
			d.logger.Warn("skipping undecodable stream entry", zap.String("id", msg.ID), zap.Error(err))
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

// Close stops the reader goroutine.
func (d *RedisDispatcher) Close() error {
	d.cancel()
	d.wg.Wait()
	return nil
}

func (d *RedisDispatcher) readLoop(ctx context.Context) {
	defer d.wg.Done()

	lastID := "$"
	for {
		if ctx.Err() != nil {
			return
		}
		streams, err := d.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{d.stream, lastID},
			Count:   readBatchSize,
			Block:   readBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Warn("stream read failed", zap.String("stream", d.stream), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				event, err := decodeStreamMessage(msg)
				if err != nil {
					d.logger.Warn("skipping undecodable stream entry", zap.String("id", msg.ID), zap.Error(err))
					continue
				}
				d.deliver(ctx, event)
			}
		}
	}
}

func decodeStreamMessage(msg redis.XMessage) (Event, error) {
	raw, ok := msg.Values[streamField]
	if !ok {
		return Event{}, fmt.Errorf("missing %q field", streamField)
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return Event{}, fmt.Errorf("unexpected %q field type %T", streamField, raw)
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	event.ID = msg.ID
	return event, nil
}

func isNoSuchKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such key")
}

func parseStreamID(id string) (uint64, uint64, bool) {
	msPart, seqPart, found := strings.Cut(id, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if !found {
		return ms, 0, true
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return ms, seq, true
}

// compareStreamIDs orders two stream IDs; unparsable IDs sort first.
func compareStreamIDs(a, b string) int {
	am, as, aok := parseStreamID(a)
	bm, bs, bok := parseStreamID(b)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	switch {
	case am < bm:
		return -1
	case am > bm:
		return 1
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeatBoard keeps the last committed seat count of every batch in one hash,
// next to a second hash holding the time of the event each count came from.
// It is a display aid; seat checks always read the batch row.
type SeatBoard struct {
	client redis.UniversalClient
	key    string
}

// NewSeatBoard creates a seat board on the PrefixSeats hash.
func NewSeatBoard(cache *Cache) *SeatBoard {
	return &SeatBoard{client: cache.Client(), key: PrefixSeats}
}

func (s *SeatBoard) stampKey() string { return s.key + ":at" }

// recordSeats writes a count only when its stamp is newer than the stored
// one, so an event delivered late cannot overwrite a fresher count.
var recordSeats = redis.NewScript(`
local prev = redis.call('HGET', KEYS[2], ARGV[1])
if prev and tonumber(prev) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
return 1
`)

// Record stores the seat count of a batch as of at. It reports false when a
// newer count is already on the board.
func (s *SeatBoard) Record(ctx context.Context, batchID string, current int, at time.Time) (bool, error) {
	if batchID == "" {
		return false, ErrCacheKeyEmpty
	}
	n, err := recordSeats.Run(ctx, s.client, []string{s.key, s.stampKey()}, batchID, current, at.UnixNano()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Forget removes a batch from the board. The stamp stays behind at the
// deletion time so late seat events cannot bring the batch back.
func (s *SeatBoard) Forget(ctx context.Context, batchID string, at time.Time) error {
	if batchID == "" {
		return ErrCacheKeyEmpty
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.key, batchID)
		pipe.HSet(ctx, s.stampKey(), batchID, at.UnixNano())
		return nil
	})
	return err
}

// Get returns the recorded seat count of one batch.
func (s *SeatBoard) Get(ctx context.Context, batchID string) (int, error) {
	n, err := s.client.HGet(ctx, s.key, batchID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrCacheMiss
	}
	return n, err
}

// Snapshot returns every recorded seat count keyed by batch id. Fields that
// do not parse are skipped.
func (s *SeatBoard) Snapshot(ctx context.Context) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for id, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		out[id] = n
	}
	return out, nil
}

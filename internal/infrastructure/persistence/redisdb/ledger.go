package redisdb

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrSlyte/rinhabackend3/internal/domain"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const ledgerKey = "payments:ledger"

// Ledger stores processed payments in a sorted set scored by processedAt in
// milliseconds since epoch, so summary queries are range reads by score.
type Ledger struct {
	client *redis.Client
	logger *slog.Logger
}

func NewLedger(client *redis.Client, logger *slog.Logger) *Ledger {
	return &Ledger{
		client: client,
		logger: logger.With("component", "ledger"),
	}
}

// Append records one processed payment. The encoded record is the set member;
// the correlation id inside it keeps members distinct even at equal scores.
func (l *Ledger) Append(ctx context.Context, rec domain.PaymentRecord) error {
	member, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal payment record: %w", err)
	}

	err = l.client.ZAdd(ctx, ledgerKey, redis.Z{
		Score:  float64(rec.ProcessedAt.UnixMilli()),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("append payment %s to ledger: %w", rec.CorrelationID, err)
	}

	return nil
}

// RangeByTime returns records with processedAt inside [from, to], bounds
// inclusive. Nil bounds are unbounded. Records that fail to decode are
// skipped with an error log rather than failing the whole read.
func (l *Ledger) RangeByTime(ctx context.Context, from, to *time.Time) ([]domain.PaymentRecord, error) {
	min, max := "-inf", "+inf"
	if from != nil {
		min = strconv.FormatInt(from.UnixMilli(), 10)
	}
	if to != nil {
		max = strconv.FormatInt(to.UnixMilli(), 10)
	}

	members, err := l.client.ZRangeByScore(ctx, ledgerKey, &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range ledger [%s, %s]: %w", min, max, err)
	}

	records := make([]domain.PaymentRecord, 0, len(members))
	for _, member := range members {
		var rec domain.PaymentRecord
		if err := json.Unmarshal([]byte(member), &rec); err != nil {
			l.logger.Error("skipping undecodable ledger record", "error", err)
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// Purge drops the entire ledger.
func (l *Ledger) Purge(ctx context.Context) error {
	if err := l.client.Del(ctx, ledgerKey).Err(); err != nil {
		return fmt.Errorf("purge ledger: %w", err)
	}
	return nil
}

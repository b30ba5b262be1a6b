package loyalty

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// applyScript marks the appointment as credited and bumps the balance in one
// step. KEYS[1] is the marker key, KEYS[2] the balances hash.
var applyScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[2]) == 0 then
  return 0
end
redis.call("HINCRBY", KEYS[2], ARGV[1], ARGV[2])
return 1
`)

// RedisLedger keeps credit markers as plain keys and balances in one hash per
// business.
type RedisLedger struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisLedger(rdb redis.UniversalClient, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "apptbook:loyalty"
	}
	return &RedisLedger{rdb: rdb, prefix: prefix}
}

func (l *RedisLedger) markerKey(c Credit) string {
	return l.prefix + ":credited:" + c.AppointmentID.String()
}

func (l *RedisLedger) balanceKey(businessID string) string {
	return l.prefix + ":balance:" + businessID
}

func (l *RedisLedger) Apply(ctx context.Context, c Credit, points int64) (bool, error) {
	n, err := applyScript.Run(ctx, l.rdb, []string{l.markerKey(c), l.balanceKey(c.BusinessID)}, c.ClientID, points).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *RedisLedger) Balance(ctx context.Context, businessID, clientID string) (int64, error) {
	v, err := l.rdb.HGet(ctx, l.balanceKey(businessID), clientID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

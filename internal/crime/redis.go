package crime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lawwarden.io/warden/internal/domain"
)

// Key layout:
//
//	<prefix>crime:<id>                     JSON record
//	<prefix>open:<authority>:<node>        SET of unresolved crime ids
//	<prefix>resolved                       ZSET of resolved ids scored by resolution time
const defaultPrefix = "warden:"

// snapshotScript reads the open set and every record in one atomic step.
var snapshotScript = redis.NewScript(`
local ids = redis.call('SMEMBERS', KEYS[1])
local out = {}
for _, id in ipairs(ids) do
  local v = redis.call('GET', ARGV[1] .. id)
  if v then table.insert(out, v) end
end
return out
`)

// claimScript returns -1 for a missing crime, 0 when another caller already
// claimed it, 1 on success.
var claimScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 0 then return -1 end
if redis.call('SREM', KEYS[1], ARGV[1]) == 0 then return 0 end
redis.call('SET', KEYS[2], ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// RedisLedger stores crimes in Redis so several engine processes can share them.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

var _ Ledger = (*RedisLedger)(nil)

// NewRedisLedger creates a ledger on an existing client. An empty prefix uses
// the default.
func NewRedisLedger(client *redis.Client, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisLedger{client: client, prefix: prefix}
}

func (l *RedisLedger) crimeKey(id domain.CrimeID) string {
	return l.prefix + "crime:" + string(id)
}

func (l *RedisLedger) openKey(authority domain.AuthorityID, node domain.NodeID) string {
	return l.prefix + "open:" + string(authority) + ":" + string(node)
}

func (l *RedisLedger) resolvedKey() string {
	return l.prefix + "resolved"
}

func (l *RedisLedger) Report(ctx context.Context, rec domain.CrimeRecord) (domain.CrimeID, error) {
	rec, err := prepare(rec)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal crime: %w", err)
	}
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, l.crimeKey(rec.ID), data, 0)
		pipe.SAdd(ctx, l.openKey(rec.AuthorityID, rec.Node), string(rec.ID))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("report crime: %w", err)
	}
	return rec.ID, nil
}

func (l *RedisLedger) Get(ctx context.Context, id domain.CrimeID) (domain.CrimeRecord, error) {
	data, err := l.client.Get(ctx, l.crimeKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CrimeRecord{}, errCrimeNotFound(id)
	}
	if err != nil {
		return domain.CrimeRecord{}, fmt.Errorf("get crime: %w", err)
	}
	var rec domain.CrimeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.CrimeRecord{}, fmt.Errorf("unmarshal crime %s: %w", id, err)
	}
	return rec, nil
}

func (l *RedisLedger) OutstandingCrimesAt(ctx context.Context, node domain.NodeID, authority domain.AuthorityID) ([]domain.CrimeRecord, error) {
	raw, err := snapshotScript.Run(ctx, l.client, []string{l.openKey(authority, node)}, l.prefix+"crime:").StringSlice()
	if err != nil {
		return nil, fmt.Errorf("read outstanding crimes: %w", err)
	}
	out := make([]domain.CrimeRecord, 0, len(raw))
	for _, s := range raw {
		var rec domain.CrimeRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal crime: %w", err)
		}
		out = append(out, rec)
	}
	sortByObserved(out)
	return out, nil
}

func (l *RedisLedger) MarkResolved(ctx context.Context, id domain.CrimeID, res domain.Resolution) error {
	rec, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Resolved() {
		return errAlreadyResolved(id)
	}
	if res.ResolvedAt.IsZero() {
		res.ResolvedAt = time.Now().UTC()
	}
	rec.Resolution = &res
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal crime: %w", err)
	}

	keys := []string{l.openKey(rec.AuthorityID, rec.Node), l.crimeKey(id), l.resolvedKey()}
	status, err := claimScript.Run(ctx, l.client, keys, string(id), data, res.ResolvedAt.Unix()).Int()
	if err != nil {
		return fmt.Errorf("resolve crime: %w", err)
	}
	switch status {
	case 1:
		return nil
	case 0:
		return errAlreadyResolved(id)
	default:
		return errCrimeNotFound(id)
	}
}

func (l *RedisLedger) PruneResolved(ctx context.Context, olderThan time.Time) (int, error) {
	ids, err := l.client.ZRangeByScore(ctx, l.resolvedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("(%d", olderThan.Unix()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list resolved crimes: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = l.crimeKey(domain.CrimeID(id))
		members[i] = id
	}
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, l.resolvedKey(), members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune resolved crimes: %w", err)
	}
	return len(ids), nil
}

// Ping checks if Redis is reachable.
func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

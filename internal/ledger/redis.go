package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding one JSON record per API.
const DefaultRedisKey = "jobsweep:ledger"

// RedisBackend stores the ledger in a Redis hash so several processes can
// share one set of counters. It implements Counter, so every read and
// increment goes through one atomic script.
type RedisBackend struct {
	client redis.Cmdable
	key    string
}

// NewRedisBackend wraps an existing go-redis client.
func NewRedisBackend(client redis.Cmdable, key string) (*RedisBackend, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{client: client, key: key}, nil
}

// DialRedis parses a redis:// URL and verifies the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Load reads every API record from the hash.
func (b *RedisBackend) Load(ctx context.Context) (map[string]UsageRecord, error) {
	fields, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", b.key, err)
	}
	records := make(map[string]UsageRecord, len(fields))
	for api, raw := range fields {
		var rec UsageRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", api, err)
		}
		records[api] = rec
	}
	return records, nil
}

// Save writes every record in one HSET.
func (b *RedisBackend) Save(ctx context.Context, records map[string]UsageRecord) error {
	if len(records) == 0 {
		return nil
	}
	values := make(map[string]any, len(records))
	for api, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", api, err)
		}
		values[api] = string(data)
	}
	if err := b.client.HSet(ctx, b.key, values).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", b.key, err)
	}
	return nil
}

// Consume runs the rollover, quota check and increment for one API as a
// single script. It returns the calls used after the operation and whether
// n was applied. A negative limit is unbounded and n of zero is a read.
func (b *RedisBackend) Consume(ctx context.Context, api, period string, n, limit int) (int, bool, error) {
	res, err := consumeScript.Run(ctx, b.client, []string{b.key}, api, period, n, limit).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("consume %s/%s: %w", b.key, api, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("consume %s/%s: unexpected reply %v", b.key, api, res)
	}
	return int(res[1]), res[0] == 1, nil
}

var consumeScript = redis.NewScript(`
local raw = redis.call('HGET', KEYS[1], ARGV[1])
local period = ARGV[2]
local n = tonumber(ARGV[3])
local limit = tonumber(ARGV[4])

local used = 0
local stale = false
if raw then
  local rec = cjson.decode(raw)
  local seen = rec['current_period'] or rec['current_month']
  if seen == period then
    used = math.max(0, tonumber(rec['usage']) or 0)
  else
    stale = true
  end
end

local allowed = 1
if limit >= 0 and used + n > limit then
  allowed = 0
elseif n > 0 then
  used = used + n
end

if stale or (allowed == 1 and n > 0) then
  redis.call('HSET', KEYS[1], ARGV[1], string.format('{"current_period":"%s","usage":%d}', period, used))
end
return {allowed, used}
`)

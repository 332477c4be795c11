package redisstore

import "github.com/redis/go-redis/v9"

// KEYS[1] counter hash, KEYS[2] period index.
// ARGV[1] amount, ARGV[2] period start (ms), ARGV[3] index member.
var incrementScript = redis.NewScript(`
local by = tonumber(ARGV[1])
local start = tonumber(ARGV[2])
local stored = tonumber(redis.call('HGET', KEYS[1], 'start'))
local count
if stored == nil or stored < start then
	redis.call('HSET', KEYS[1], 'count', by, 'start', start)
	count = by
	stored = start
else
	count = redis.call('HINCRBY', KEYS[1], 'count', by)
end
redis.call('ZADD', KEYS[2], stored, ARGV[3])
return {count, stored}
`)

// KEYS[1] counter hash, KEYS[2] period index.
// ARGV[1] new period start (ms), ARGV[2] index member.
var resetScript = redis.NewScript(`
local target = tonumber(ARGV[1])
local stored = tonumber(redis.call('HGET', KEYS[1], 'start'))
if stored == nil or stored >= target then
	return 0
end
redis.call('HSET', KEYS[1], 'count', 0, 'start', target)
redis.call('ZADD', KEYS[2], target, ARGV[2])
return 1
`)

// KEYS[1] notification record index.
// ARGV[1] exclusive upper bound on period start (ms).
// Record hashes are named by the index members, so the prefix must keep
// them on one node.
var clearScript = redis.NewScript(`
local bound = '(' .. ARGV[1]
local keys = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', bound)
local removed = 0
for i = 1, #keys do
	removed = removed + redis.call('HLEN', keys[i])
	redis.call('DEL', keys[i])
end
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', bound)
return removed
`)

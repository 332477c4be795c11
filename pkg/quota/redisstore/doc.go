// Package redisstore implements quota.Store on Redis.
//
// Each counter is a hash holding its count and period start. Counters are
// indexed per period in a sorted set scored by period start, which serves
// ListStale. Notification records live in one hash per (counter, cycle),
// mapping tier names to send times, and are indexed per period the same way
// so that Clear can drop whole cycles.
//
// Increment and Reset run as Lua scripts so rollover and the compare step are
// atomic. Claim relies on HSETNX, which grants each tier exactly once.
package redisstore

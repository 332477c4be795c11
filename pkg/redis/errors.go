package redis

import "errors"

var (
	ErrEmptyConnectionURL   = errors.New("redis: empty connection URL, set REDIS_URL")
	ErrInvalidConnectionURL = errors.New("redis: invalid connection URL")
	ErrNotReady             = errors.New("redis: server did not answer PING before the connect timeout")
	ErrUnhealthy            = errors.New("redis: healthcheck failed")
)

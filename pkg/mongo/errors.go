package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	ErrNotReady  = errors.New("mongo: server did not answer ping before the connect timeout")
	ErrUnhealthy = errors.New("mongo: healthcheck failed")
)

// IsDuplicateKeyError reports whether err is a unique index violation.
func IsDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// IsNotFoundError reports whether err means no document matched.
func IsNotFoundError(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

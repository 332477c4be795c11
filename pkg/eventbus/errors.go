package eventbus

import "errors"

var (
	ErrFailedToConnect = errors.New("eventbus: failed to connect to broker")
	ErrFailedToEncode  = errors.New("eventbus: failed to encode event")
	ErrFailedToPublish = errors.New("eventbus: failed to publish event")
)

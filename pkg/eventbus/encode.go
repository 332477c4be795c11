package eventbus

import (
	"encoding/json"
	"errors"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// EventType is attached to every message so consumers can route without
// decoding the body.
const EventType = "quota.threshold_reached"

func encode(event quota.Event) ([]byte, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Join(ErrFailedToEncode, err)
	}
	return b, nil
}

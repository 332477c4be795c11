package binder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DefaultMaxBodySize caps JSON bodies unless WithMaxBodySize overrides it.
const DefaultMaxBodySize int64 = 64 << 10

// JSONOption configures BindJSON.
type JSONOption func(*jsonConfig)

type jsonConfig struct {
	maxBody int64
}

// WithMaxBodySize sets the largest accepted body in bytes.
func WithMaxBodySize(n int64) JSONOption {
	return func(c *jsonConfig) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// BindJSON creates a JSON body binder.
//
// Example:
//
//	r.Post("/authorize", handler.Wrap(authorize,
//		handler.WithBinders[handler.Context, authorizeRequest](binder.BindJSON()),
//	))
func BindJSON(opts ...JSONOption) func(r *http.Request, v any) error {
	cfg := jsonConfig{maxBody: DefaultMaxBodySize}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(r *http.Request, v any) error {
		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, contentType)
		}

		// one extra byte tells an oversized body from one that fits exactly
		body := io.LimitReader(r.Body, cfg.maxBody+1)
		counted := &countingReader{r: body}
		dec := json.NewDecoder(counted)
		dec.DisallowUnknownFields()

		if err := dec.Decode(v); err != nil {
			switch {
			case counted.n > cfg.maxBody:
				return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, cfg.maxBody)
			case errors.Is(err, io.EOF):
				return fmt.Errorf("%w: empty body", ErrFailedToParseJSON)
			default:
				return fmt.Errorf("%w: %w", ErrFailedToParseJSON, err)
			}
		}

		// the whole body must be a single JSON value
		var extra json.RawMessage
		if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
			if counted.n > cfg.maxBody {
				return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, cfg.maxBody)
			}
			return fmt.Errorf("%w: unexpected data after JSON object", ErrFailedToParseJSON)
		}
		return nil
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

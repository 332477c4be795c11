package handler

import (
	"encoding/json"
	"errors"
	"net/http"
)

// JSONResponse is the standard JSON response structure.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type jsonResponse struct {
	status  int
	headers http.Header
	body    JSONResponse
}

func (j *jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	for k, vs := range j.headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithJSONStatus sets a custom HTTP status code.
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

// WithJSONMeta adds metadata to the response.
func WithJSONMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) { r.body.Meta = meta }
}

// WithJSONHeader sets a response header, e.g. Retry-After.
func WithJSONHeader(key, value string) JSONOption {
	return func(r *jsonResponse) {
		if r.headers == nil {
			r.headers = make(http.Header)
		}
		r.headers.Set(key, value)
	}
}

// JSON creates a JSON response. A JSONResponse value is sent as is; any
// other value becomes the data member. Status defaults to 200.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK}
	switch val := v.(type) {
	case JSONResponse:
		r.body = val
	case *ErrorDetail:
		r.body.Error = val
		r.status = http.StatusInternalServerError
	case error:
		r.body.Error = errorToDetail(val, &r.status)
	default:
		r.body.Data = v
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError creates a JSON error response. An HTTPError sets status and
// code; other errors become 500 internal_error.
func JSONError(err any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusInternalServerError}
	switch e := err.(type) {
	case *ErrorDetail:
		r.body.Error = e
	case error:
		r.body.Error = errorToDetail(e, &r.status)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func errorToDetail(err error, status *int) *ErrorDetail {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		*status = httpErr.Code
		return &ErrorDetail{Code: httpErr.Key, Message: httpErr.Error()}
	}
	if *status == http.StatusOK {
		*status = http.StatusInternalServerError
	}
	return &ErrorDetail{Code: "internal_error", Message: http.StatusText(http.StatusInternalServerError)}
}

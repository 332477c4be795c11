package binder

import (
	"fmt"
	"net/http"
	"reflect"
)

// Path creates a path parameter binder using extractor, typically chi.URLParam.
//
// Only fields tagged `path:"name"` are bound; `path:"-"` and untagged fields
// are left alone. An empty parameter leaves the field at its zero value.
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: extractor function is nil", ErrFailedToParsePath)
		}

		rv, err := structTarget(v)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToParsePath, err)
		}
		return bindFields(rv, func(field reflect.Value, sf reflect.StructField) error {
			name, ok := tagName(sf, "path")
			if !ok {
				return nil
			}
			value := extractor(r, name)
			if value == "" {
				return nil
			}
			if err := setFieldValue(field, value); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrFailedToParsePath, name, err)
			}
			return nil
		})
	}
}

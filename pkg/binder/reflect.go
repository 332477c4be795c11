package binder

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

func structTarget(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, errors.New("target must be a non-nil pointer")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, errors.New("target must be a pointer to struct")
	}
	return rv, nil
}

// bindFields calls fn for every settable field, descending into embedded structs.
func bindFields(rv reflect.Value, fn func(reflect.Value, reflect.StructField) error) error {
	rt := rv.Type()
	for i := range rv.NumField() {
		field, sf := rv.Field(i), rt.Field(i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			if err := bindFields(field, fn); err != nil {
				return err
			}
			continue
		}
		if !field.CanSet() {
			continue
		}
		if err := fn(field, sf); err != nil {
			return err
		}
	}
	return nil
}

// tagName returns the parameter name from a tag, or false when the field
// is untagged or skipped with "-".
func tagName(sf reflect.StructField, key string) (string, bool) {
	tag := sf.Tag.Get(key)
	if tag == "" || tag == "-" {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	return name, name != ""
}

func setFieldValue(field reflect.Value, value string) error {
	if field.Kind() == reflect.Pointer {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return setFieldValue(field.Elem(), value)
	}

	if field.CanAddr() && field.Addr().Type().Implements(textUnmarshalerType) {
		return field.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value))
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid int value %q", value)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid uint value %q", value)
		}
		field.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value %q", value)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported type %s", field.Type())
	}
	return nil
}

package internal

import (
	"reflect"
	"strconv"

	"github.com/spf13/cast"
)

type scalar interface {
	~string | ~int | ~int64 | ~uint | ~float64 | ~bool
}

func ContextValue[T any](c Context, key any) T {
	if v, ok := c.Get(key).(T); ok {
		return v
	}
	var zero T
	return zero
}

// Model returns the value a route binding resolved for the parameter.
//
//	post, ok := keel.Model[*Post](c, "post")
func Model[T any](c Context, param string) (T, bool) {
	v, ok := c.Bound(param).(T)
	return v, ok
}

func Param[T scalar](c Context, name string) T {
	v, _ := convertParam[T](c.Param(name))
	return v
}

func Query[T scalar](c Context, name string) T {
	v, _ := convertParam[T](c.Query(name))
	return v
}

// QueryDefault retrieves a typed query parameter with a default value.
// Returns defaultValue if the parameter is empty or cannot be parsed.
func QueryDefault[T scalar](c Context, name string, defaultValue T) T {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue
	}
	v, ok := convertParam[T](raw)
	if !ok {
		return defaultValue
	}
	return v
}

// convertParam converts raw to T. Named types such as `type PostID int64`
// convert through their underlying kind. Integers must be plain base-10:
// "3.14" and "0x1F" are rejected rather than truncated or reinterpreted.
func convertParam[T scalar](raw string) (T, bool) {
	var zero T
	target := reflect.ValueOf(&zero).Elem()

	var (
		v   any
		err error
	)
	switch target.Kind() {
	case reflect.String:
		v = raw
	case reflect.Int:
		var n int64
		n, err = strconv.ParseInt(raw, 10, strconv.IntSize)
		v = int(n)
	case reflect.Int64:
		v, err = strconv.ParseInt(raw, 10, 64)
	case reflect.Uint:
		var n uint64
		n, err = strconv.ParseUint(raw, 10, strconv.IntSize)
		v = uint(n)
	case reflect.Float64:
		v, err = cast.ToFloat64E(raw)
	case reflect.Bool:
		v, err = cast.ToBoolE(raw)
	default:
		return zero, false
	}
	if err != nil {
		return zero, false
	}
	target.Set(reflect.ValueOf(v).Convert(target.Type()))
	return zero, true
}

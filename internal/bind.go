package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/dmitrymomot/keel/pkg/validator"
)

const maxMultipartMemory = 32 << 20

var timeType = reflect.TypeOf(time.Time{})

func bindJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func bindForm(r *http.Request, v any) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return err
		}
	} else if err := r.ParseForm(); err != nil {
		return err
	}
	return bindValues(r.Form, v)
}

// bindValues copies url.Values into the struct v points to.
// Fields are matched by `form` tag, then `json` tag, then field name.
// Nested structs are addressed with dots: "address.city".
func bindValues(values url.Values, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("bind: expected non-nil pointer, got %T", v)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("bind: expected pointer to struct, got %T", v)
	}
	return bindStruct(values, rv, "")
}

func bindStruct(values url.Values, rv reflect.Value, prefix string) error {
	rt := rv.Type()
	for i := range rt.NumField() {
		f := rt.Field(i)
		fv := rv.Field(i)

		// Untagged embedded structs promote their fields even when the
		// embedded type itself is unexported.
		if f.Anonymous && fv.Kind() == reflect.Struct && formFieldName(f) == f.Name {
			if err := bindStruct(values, fv, prefix); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		name := formFieldName(f)
		if name == "" {
			continue
		}
		key := prefix + name

		if fv.Kind() == reflect.Struct && fv.Type() != timeType {
			if err := bindStruct(values, fv, key+"."); err != nil {
				return err
			}
			continue
		}

		raw, ok := values[key]
		if !ok {
			raw, ok = values[key+"[]"]
		}
		if !ok || len(raw) == 0 {
			continue
		}
		if err := setField(fv, raw); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func formFieldName(f reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func setField(fv reflect.Value, raw []string) error {
	if fv.Kind() == reflect.Pointer {
		ptr := reflect.New(fv.Type().Elem())
		if err := setField(ptr.Elem(), raw); err != nil {
			return err
		}
		fv.Set(ptr)
		return nil
	}
	if fv.Kind() == reflect.Slice {
		out := reflect.MakeSlice(fv.Type(), len(raw), len(raw))
		for i, s := range raw {
			if err := setScalar(out.Index(i), s); err != nil {
				return err
			}
		}
		fv.Set(out)
		return nil
	}
	return setScalar(fv, raw[0])
}

func setScalar(fv reflect.Value, s string) error {
	if fv.Type() == timeType {
		t, err := cast.ToTimeE(s)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(normalizeBool(s))
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := cast.ToDurationE(s)
			if err != nil {
				return err
			}
			fv.SetInt(int64(d))
			return nil
		}
		n, err := cast.ToInt64E(s)
		if err != nil {
			return err
		}
		if fv.OverflowInt(n) {
			return fmt.Errorf("value %q overflows %s", s, fv.Type())
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(s)
		if err != nil {
			return err
		}
		if fv.OverflowUint(n) {
			return fmt.Errorf("value %q overflows %s", s, fv.Type())
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := cast.ToFloat64E(s)
		if err != nil {
			return err
		}
		fv.SetFloat(n)
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

// normalizeBool accepts checkbox values ("on", "yes").
func normalizeBool(s string) string {
	switch strings.ToLower(s) {
	case "on", "yes":
		return "true"
	case "off", "no", "":
		return "false"
	}
	return s
}

// validate runs the app validator and wraps field errors.
// Values that are not structs have no rules and pass.
func (a *App) validate(v any) error {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	err := a.validator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.Errors
	if errors.As(err, &fieldErrs) {
		return NewValidationError(fieldErrs)
	}
	return err
}

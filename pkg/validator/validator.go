// Package validator validates request payloads with go-playground/validator
// and reports failures as human-readable messages keyed by field:
//
//	type SignUp struct {
//		Email    string `json:"email" validate:"required,email"`
//		Password string `json:"password" validate:"required,min=8"`
//	}
//
//	err := validator.Default().Struct(&in)
//	// validator.Errors{"password": {"The password field must be at least 8 characters."}}
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrymomot/keel/pkg/id"
)

// ErrInvalidInput wraps non-struct inputs and registration failures.
var ErrInvalidInput = errors.New("validator: invalid input")

// Errors maps field names to their messages.
type Errors map[string][]string

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	fields := e.Fields()
	first := e[fields[0]][0]
	if n := e.Count() - 1; n > 0 {
		return fmt.Sprintf("%s (and %d more error%s)", first, n, plural(n))
	}
	return first
}

// Add appends a message for field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// First returns the first message for field or "".
func (e Errors) First(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Fields returns the field names in sorted order.
func (e Errors) Fields() []string {
	out := make([]string, 0, len(e))
	for f := range e {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Count returns the total number of messages.
func (e Errors) Count() int {
	n := 0
	for _, msgs := range e {
		n += len(msgs)
	}
	return n
}

// Validator validates structs using `validate` tags. Field names come from
// the json tag, then the form tag, then the Go name.
type Validator struct {
	v        *validator.Validate
	messages map[string]string
	mu       sync.RWMutex
}

// Option configures a Validator.
type Option func(*Validator)

// WithMessages overrides message templates per tag. Templates may use
// :attribute, :param and :other.
func WithMessages(m map[string]string) Option {
	return func(v *Validator) {
		for tag, msg := range m {
			v.messages[tag] = msg
		}
	}
}

var ulidRe = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Za-hjkmnp-tv-z]{26}$`)

// New creates a Validator with the built-in rules plus "ulid" and "slug".
func New(opts ...Option) *Validator {
	v := &Validator{
		v:        validator.New(validator.WithRequiredStructEnabled()),
		messages: make(map[string]string, len(defaultMessages)),
	}
	for tag, msg := range defaultMessages {
		v.messages[tag] = msg
	}
	v.v.RegisterTagNameFunc(fieldName)

	_ = v.v.RegisterValidation("ulid", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return ulidRe.MatchString(s) && id.IsULID(strings.ToUpper(s))
	})
	_ = v.v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRe.MatchString(fl.Field().String())
	})

	for _, opt := range opts {
		opt(v)
	}
	return v
}

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var (
	defaultOnce sync.Once
	defaultV    *Validator
)

// Default returns a shared Validator.
func Default() *Validator {
	defaultOnce.Do(func() { defaultV = New() })
	return defaultV
}

// Register adds a custom rule with its message template.
func (v *Validator) Register(tag string, fn func(value any, param string) bool, message string) error {
	err := v.v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().Interface(), fl.Param())
	})
	if err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	v.mu.Lock()
	v.messages[tag] = message
	v.mu.Unlock()
	return nil
}

// Struct validates s. It returns nil, an Errors value, or ErrInvalidInput
// when s is not a struct.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Join(ErrInvalidInput, err)
	}

	out := Errors{}
	for _, fe := range fieldErrs {
		key := fieldPath(fe.Namespace())
		out.Add(key, v.message(fe))
	}
	return out
}

// Var validates a single value against tag rules, reporting it as field.
func (v *Validator) Var(field string, value any, tags string) error {
	err := v.v.Var(value, tags)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Join(ErrInvalidInput, err)
	}
	out := Errors{}
	for _, fe := range fieldErrs {
		out.Add(field, v.render(fe, field))
	}
	return out
}

func (v *Validator) message(fe validator.FieldError) string {
	return v.render(fe, fe.Field())
}

func (v *Validator) render(fe validator.FieldError, field string) string {
	v.mu.RLock()
	tmpl, ok := v.messages[sizedTag(fe)]
	if !ok {
		tmpl, ok = v.messages[fe.Tag()]
	}
	v.mu.RUnlock()
	if !ok {
		tmpl = "The :attribute field is invalid."
	}

	r := strings.NewReplacer(
		":attribute", attribute(field),
		":other", attribute(fe.Param()),
		":param", fe.Param(),
		":values", strings.Join(strings.Fields(fe.Param()), ", "),
	)
	return r.Replace(tmpl)
}

// sizedTag distinguishes size rules by kind, e.g. "min.string".
func sizedTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max", "len", "gt", "gte", "lt", "lte":
	default:
		return fe.Tag()
	}
	switch fe.Kind() {
	case reflect.String:
		return fe.Tag() + ".string"
	case reflect.Slice, reflect.Array, reflect.Map:
		return fe.Tag() + ".array"
	default:
		return fe.Tag() + ".numeric"
	}
}

// fieldPath turns "SignUp.address.city" into "address.city".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func attribute(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
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

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

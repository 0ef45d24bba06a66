package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxBodyBytes bounds request bodies read by DecodeAndValidate.
const MaxBodyBytes = 1 << 20

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Money fields compare numerically under gt/gte/lte.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return decimalFloat(d)
		}
		return nil
	}, decimal.Decimal{})

	return v
}

// maxDecimalDigits bounds the magnitude and scale decimalFloat converts
// exactly. Outside it the value is only approximated.
const maxDecimalDigits = 18

// decimalFloat converts d for comparison without expanding extreme
// exponents: d.Float64 on 1e20000000 would build a 20-million-digit integer.
// Magnitudes past maxDecimalDigits map to ±Inf. Values with more decimal
// places than that compare as 0 and are left to the caller's scale check.
func decimalFloat(d decimal.Decimal) float64 {
	exp := int(d.Exponent())
	if exp > maxDecimalDigits || d.NumDigits()+exp > maxDecimalDigits {
		return math.Inf(d.Sign())
	}
	if exp < -maxDecimalDigits {
		return 0
	}
	return d.InexactFloat64()
}

// Validate checks s against its validate tags. Tag failures come back as a
// *ValidationError.
func Validate(s any) error {
	err := validate.Struct(s)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return &ValidationError{Errors: fieldErrs}
	}
	return err
}

// ValidationError carries the failed fields of one request.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	for i, fe := range e.Errors {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "field '%s' %s", fieldPath(fe), describe(fe))
	}
	return b.String()
}

// Fields maps each failed field's JSON path, e.g. "shipping_address.city",
// to a readable message.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		fields[fieldPath(fe)] = describe(fe)
	}
	return fields
}

// fieldPath drops the root struct name from the error namespace.
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok && rest != "" {
		return rest
	}
	return fe.Field()
}

var tagMessages = map[string]string{
	"required": "is required",
	"min":      "must be at least %s characters",
	"max":      "must be at most %s characters",
	"gt":       "must be greater than %s",
	"gte":      "must be greater than or equal to %s",
	"lte":      "must be less than or equal to %s",
	"url":      "must be a valid URL",
	"oneof":    "must be one of: %s",
}

func describe(fe validator.FieldError) string {
	format, ok := tagMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
	if strings.Contains(format, "%s") {
		return fmt.Sprintf(format, fe.Param())
	}
	return format
}

// DecodeAndValidate decodes a single JSON value from the request body into
// dst and validates it. Bodies over MaxBodyBytes and trailing data after the
// value are rejected.
func DecodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("decode request body: unexpected data after JSON value")
	}
	return Validate(dst)
}

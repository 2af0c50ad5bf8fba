package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// FieldError is a single failed rule, addressed by its JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Rule    string `json:"-"`
}

// Errors is the ordered list of field errors for one input. It is returned as an error value.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed any rule.
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

type Validator struct {
	v            *validatorv10.Validate
	requireItems bool
}

type Option func(*Validator)

// RequireItems makes items mandatory on create, for itemized pricing.
func RequireItems() Option {
	return func(v *Validator) { v.requireItems = true }
}

// New returns a configured validator with the custom rules and struct-level checks registered.
func New(opts ...Option) *Validator {
	out := &Validator{v: validatorv10.New()}
	for _, opt := range opts {
		opt(out)
	}

	out.v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	out.v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = out.v.RegisterValidation("notblank", notBlank)
	_ = out.v.RegisterValidation("safesegment", safeSegment)
	out.v.RegisterStructValidation(out.createOrderStructValidation, CreateOrderRequest{})
	out.v.RegisterStructValidation(updateStatusStructValidation, UpdateStatusRequest{})

	return out
}

// Struct validates s and returns Errors, in rule order, or nil.
func (v *Validator) Struct(s interface{}) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate: %w", err)
	}

	out := make(Errors, 0, len(ve))
	for _, fe := range ve {
		field := fieldPath(fe.Namespace())
		out = append(out, FieldError{
			Field:   field,
			Message: message(field, fe),
			Rule:    fe.Tag(),
		})
	}
	return out
}

func decimalValue(field reflect.Value) interface{} {
	d, ok := field.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	return f
}

func notBlank(fl validatorv10.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(fl.Field().String()) != ""
}

// safeSegment accepts values usable as a single storage key segment.
func safeSegment(fl validatorv10.FieldLevel) bool {
	s := fl.Field().String()
	if strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return false
	}
	return s == strings.TrimSpace(s)
}

func (v *Validator) createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	if v.requireItems && len(req.Items) == 0 {
		sl.ReportError(req.Items, "items", "Items", "items_required", "")
	}

	// Prices are stored in minor units; anything finer would be rounded away after pricing.
	for i, item := range req.Items {
		if item.Price != nil && !hasMinorUnits(*item.Price) {
			sl.ReportError(item.Price, fmt.Sprintf("items[%d].price", i), "Price", "minorunits", "2")
		}
	}

	if md := req.Metadata; md != nil {
		switch {
		case md.Album != nil && md.Collage != nil:
			sl.ReportError(req.Metadata, "metadata", "Metadata", "one_variant", "")
		case md.Album != nil && req.Type != "album", md.Collage != nil && req.Type != "collage":
			sl.ReportError(req.Metadata, "metadata", "Metadata", "variant_matches_type", req.Type)
		}
	}
}

func updateStatusStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateStatusRequest)
	if req.ErrorMessage != "" && req.Status != "FAILED" {
		sl.ReportError(req.ErrorMessage, "errorMessage", "ErrorMessage", "failed_only", "")
	}
}

func hasMinorUnits(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// fieldPath drops the root struct name: "CreateOrderRequest.items[0].price" -> "items[0].price".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(field string, fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "notblank":
		return field + " must not be blank"
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "uppercase":
		return field + " must be uppercase"
	case "safesegment":
		return field + " must be a single path segment"
	case "items_required":
		return field + " must contain at least one item"
	case "one_variant":
		return field + " must contain only one of album or collage"
	case "variant_matches_type":
		return fmt.Sprintf("%s must match order type %q", field, fe.Param())
	case "minorunits":
		return fmt.Sprintf("%s must have at most %s decimal places", field, fe.Param())
	case "failed_only":
		return field + " is only allowed when status is FAILED"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

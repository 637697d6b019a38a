// Package schema parses and validates request input into domain values.
//
// Every Parse function either returns a fully defaulted value or an error of
// kind types.ErrValidation whose message is safe to return to the caller.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sunledger/sunledger/pkg/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// messages overrides the generic message for a field and tag pair.
var messages = map[string]string{
	"serialNumber.required":   "Serial number is required",
	"capacity.required":       "Capacity is required",
	"capacity.gt":             "Capacity must be a positive number",
	"userId.required":         "User ID is required",
	"solarUnitId.required":    "Solar unit ID is required",
	"energyProduced.required": "Energy produced is required",
	"energyProduced.gte":      "Energy produced cannot be negative",
	"intervalHours.gte":       "Interval must be at least 6 minutes",
	"intervalHours.lte":       "Interval cannot exceed 24 hours",
	"startDate.required":      "Start date is required",
	"fromTimestamp.required":  "fromTimestamp is required",
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must be an ISO-8601 datetime", fe.Field())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// check runs the struct rules of s and converts failures into a single
// validation error.
func check(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.Errorf(types.ErrValidation, "%s", err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return types.Errorf(types.ErrValidation, "%s", strings.Join(msgs, "; "))
}

// decode reads a JSON body into v.
func decode(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return types.Errorf(types.ErrValidation, "Request body is required")
		}
		return types.Errorf(types.ErrValidation, "Invalid JSON body: %v", err)
	}
	return nil
}

// parseTime parses a value already accepted by the datetime rule. Fractional
// seconds are accepted even though RFC3339 omits them.
func parseTime(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, types.Errorf(types.ErrValidation, "Invalid timestamp: %s", *s)
	}
	t = t.UTC()
	return &t, nil
}

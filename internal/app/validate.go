package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"stayfinder/internal/domain"
)

var validate = newValidator()

// newValidator reports fields under their json names so error keys match
// what clients sent.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct runs tag validation and folds failures into a
// *domain.ValidationError. It returns nil when v is valid.
func validateStruct(v any) *domain.ValidationError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	out := &domain.ValidationError{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add("request", err.Error())
		return out
	}
	for _, fe := range verrs {
		out.Add(fe.Field(), fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return fmt.Sprintf("invalid %s", fe.Field())
	}
}

// ValidateSearch checks a search request before any store access.
func ValidateSearch(req domain.SearchRequest) error {
	verr := validateStruct(req)
	if verr == nil {
		verr = &domain.ValidationError{}
	}
	if !req.CheckInDate.IsZero() && !req.CheckOutDate.IsZero() {
		switch n := domain.NightsBetween(req.CheckInDate, req.CheckOutDate); {
		case n <= 0:
			verr.Add("night", "check-out must be at least one night after check-in")
		case n > domain.MaxStayNights:
			verr.Add("night", fmt.Sprintf("stay must not exceed %d nights", domain.MaxStayNights))
		}
	}
	if req.MinPrice != nil && req.MinPrice.IsNegative() {
		verr.Add("minPrice", "must not be negative")
	}
	if req.MinPrice != nil && req.MaxPrice != nil && req.MinPrice.GreaterThan(*req.MaxPrice) {
		verr.Add("maxPrice", "must not be below minPrice")
	}
	if verr.Len() > 0 {
		return verr
	}
	return nil
}

func isValidation(err error) bool { return errors.Is(err, domain.ErrInvalidQuery) }

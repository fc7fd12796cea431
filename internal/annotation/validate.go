package annotation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// report json field names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// ValidateMarker checks that a marker points at a real page with finite coordinates.
func ValidateMarker(pageNumber int, position Position) error {
	if pageNumber < 1 {
		return &ValidationError{Field: "pageNumber", Reason: fmt.Sprintf("must be >= 1, got %d", pageNumber)}
	}
	if !finite(position.X) {
		return &ValidationError{Field: "position.x", Reason: "must be finite"}
	}
	if !finite(position.Y) {
		return &ValidationError{Field: "position.y", Reason: "must be finite"}
	}
	return nil
}

// ValidateRequest runs struct validation plus the marker checks on a create request.
func ValidateRequest(req CommentRequest) error {
	if err := structValidator().Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: fe.Field(), Reason: "failed " + fe.Tag()}
		}
		return &ValidationError{Reason: err.Error()}
	}
	if req.Marker != nil {
		return ValidateMarker(req.Marker.PageNumber, req.Marker.Position)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

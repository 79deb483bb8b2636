package handlers

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"vibelink/middleware"
	"vibelink/response"
)

const (
	locationBody   = "body"
	locationQuery  = "query"
	locationParams = "params"
)

var registerOnce sync.Once

// RegisterValidation makes validation errors report json/form field names
// instead of Go field names.
func RegisterValidation() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.Abort(c, bindError(err, locationBody))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		middleware.Abort(c, bindError(err, locationQuery))
		return false
	}
	return true
}

// callerID returns the authenticated user or aborts with 401.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		middleware.Abort(c, middleware.Unauthorized("Missing authorization token"))
	}
	return id, ok
}

// uuidParam parses a path parameter, aborting with a validation error when
// it is not a UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		middleware.Abort(c, middleware.ValidationError([]response.FieldError{{
			Field:    name,
			Message:  name + " must be a valid UUID",
			Location: locationParams,
		}}))
		return uuid.Nil, false
	}
	return id, true
}

func bindError(err error, location string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return middleware.ValidationError(fieldErrors(verrs, location))
	}
	if errors.Is(err, io.EOF) {
		return middleware.BadRequest("Request body is required")
	}
	if location == locationQuery {
		return middleware.BadRequest("Invalid query parameters")
	}
	return middleware.BadRequest("Invalid request body")
}

func fieldErrors(verrs validator.ValidationErrors, location string) []response.FieldError {
	out := make([]response.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if parts := strings.SplitN(fe.Namespace(), ".", 2); len(parts) == 2 {
			field = parts[1]
		}
		out = append(out, response.FieldError{
			Field:    field,
			Message:  fieldMessage(field, fe),
			Location: location,
		})
	}
	return out
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "alphanum":
		return field + " must contain only letters and numbers"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "uuid", "uuid4":
		return field + " must be a valid UUID"
	case "url":
		return field + " must be a valid URL"
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must be %s %s characters", field, bound, fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("%s must contain %s %s items", field, bound, fe.Param())
		default:
			return fmt.Sprintf("%s must be %s %s", field, bound, fe.Param())
		}
	}
	return field + " is invalid"
}

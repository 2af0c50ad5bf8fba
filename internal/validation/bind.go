package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
)

// BodyError reports a request body that could not be decoded.
type BodyError struct {
	Fields Errors
	Err    error
}

func (e *BodyError) Error() string { return "invalid request body: " + e.Err.Error() }
func (e *BodyError) Unwrap() error { return e.Err }

// BindJSON decodes the request body into out. Type mismatches are reported per field.
func BindJSON(c *gin.Context, out interface{}) error {
	if err := c.ShouldBindJSON(out); err != nil {
		be := &BodyError{Err: err}

		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			be.Err = errors.New("request body is empty")
		case errors.As(err, &typeErr) && typeErr.Field != "":
			be.Fields = Errors{{
				Field:   typeErr.Field,
				Message: fmt.Sprintf("%s has an invalid type, expected %s", typeErr.Field, typeErr.Type.String()),
				Rule:    "type",
			}}
		}
		return be
	}
	return nil
}

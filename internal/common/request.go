package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	validator "github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// Decode reads a JSON body into v and runs struct validation. Failures come
// back as a 400 AppError whose details list the offending fields.
func Decode(r *http.Request, v any, validate *validator.Validate) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &AppError{Code: "BAD_REQUEST", Message: "invalid payload", HTTPStatus: http.StatusBadRequest, Err: err,
			Details: map[string]any{"error": err.Error()}}
	}
	if validate == nil {
		return nil
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &AppError{Code: "BAD_REQUEST", Message: "invalid payload", HTTPStatus: http.StatusBadRequest, Err: err}
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fmt.Sprintf("failed on the '%s' tag", fe.Tag())
		}
		return &AppError{Code: "VALIDATION_ERROR", Message: "validation failed", HTTPStatus: http.StatusBadRequest, Err: err,
			Details: map[string]any{"fields": fields}}
	}
	return nil
}

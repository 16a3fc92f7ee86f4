package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"compras/internal/core"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// errBadRequest marks body and parameter problems, reported as 400.
var errBadRequest = errors.New("bad request")

// ValidationError is returned when a decoded body fails its struct tags.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

type addItemRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Category string `json:"category" validate:"required,max=80"`
	Quantity any    `json:"quantity"`
	Price    any    `json:"price"`
}

type updateItemRequest struct {
	Field string `json:"field" validate:"required,oneof=name quantity price"`
	Value any    `json:"value"`
}

type selectionRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Quantity any    `json:"quantity"`
}

// importRequest imports the listed selections, or with All every current
// estimation at its suggested quantity.
type importRequest struct {
	Selections []selectionRequest `json:"selections" validate:"required_without=All,dive"`
	All        bool               `json:"all"`
}

// decodeJSON reads a JSON body into dst, trims its strings and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	if t, ok := dst.(interface{ trim() }); ok {
		t.trim()
	}
	if err := validate.Struct(dst); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func (r *addItemRequest) trim() {
	r.Name = sanitizeInput(r.Name)
	r.Category = sanitizeInput(r.Category)
}

func (r *importRequest) trim() {
	for i := range r.Selections {
		r.Selections[i].Name = sanitizeInput(r.Selections[i].Name)
	}
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, e := range verrs {
		out.Problems = append(out.Problems, formatFieldError(e))
	}
	return out
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_without":
		return fmt.Sprintf("%s is required unless %s is set", field, strings.ToLower(e.Param()))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// monthParam resolves the {month} URL parameter to a month key.
func monthParam(r *http.Request) (string, error) {
	return core.ParseMonth(chi.URLParam(r, "month"))
}

func itemIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid item id %q", errBadRequest, raw)
	}
	return id, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

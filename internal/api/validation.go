package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator that reports JSON field names and knows
// the "notfuture" date rule.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// notfuture accepts a YYYY-MM-DD date no later than today. Today is taken
	// in the easternmost timezone so a buyer just past midnight is not refused.
	err := v.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
		d, err := time.Parse(time.DateOnly, fl.Field().String())
		if err != nil {
			return false
		}
		latestToday := time.Now().UTC().Add(14 * time.Hour).Format(time.DateOnly)
		return d.Format(time.DateOnly) <= latestToday
	})
	if err != nil {
		panic("api: register notfuture validation: " + err.Error())
	}

	return v
}

// giftContentRequest is the body of POST /api/gifts and PATCH /api/gifts/{id}.
// Every field is optional; a nil field is left unchanged.
type giftContentRequest struct {
	Phrase            *string `json:"phrase" validate:"omitempty,min=3,max=80"`
	RelationshipStart *string `json:"relationship_start" validate:"omitempty,datetime=2006-01-02,notfuture"`
	Letter            *string `json:"letter" validate:"omitempty,min=30,max=4000"`
}

// normalize trims surrounding whitespace so length rules apply to content.
func (req *giftContentRequest) normalize() {
	for _, p := range []*string{req.Phrase, req.RelationshipStart, req.Letter} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
}

func (req *giftContentRequest) empty() bool {
	return req.Phrase == nil && req.RelationshipStart == nil && req.Letter == nil
}

// checkoutReadiness lists what a gift needs before it can be paid for.
type checkoutReadiness struct {
	Phrase            string `json:"phrase" validate:"required,min=3,max=80"`
	RelationshipStart string `json:"relationship_start" validate:"required"`
	Letter            string `json:"letter" validate:"required,min=30,max=4000"`
	Photo             string `json:"photo" validate:"required"`
}

// validationFailed is the 422 body.
type validationFailed struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// respondValidation writes 422 with one rule name per failing field, or 400
// if err is not a validation error.
func respondValidation(w http.ResponseWriter, err error, message string) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		respondErr(w, http.StatusBadRequest, "invalid input")
		return
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	respond(w, http.StatusUnprocessableEntity, validationFailed{Error: message, Fields: fields})
}

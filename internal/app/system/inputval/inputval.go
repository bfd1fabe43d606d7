// Package inputval validates request payloads before they reach the stores.
//
// Struct validation runs through go-playground/validator tags; the helper
// predicates cover the spots where a full struct pass is overkill.
package inputval

import (
	"errors"
	"net/mail"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/uncip/guardhub/internal/app/system/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// objectid validates 24-char hex IDs carried as strings in payloads.
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return IsValidObjectID(fl.Field().String())
	})
	return v
}

// Struct validates a payload against its validate tags. The first failing
// field is reported as an invalid-input error naming the field.
func Struct(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Field(strings.ToLower(fe.Field()), "failed "+fe.Tag()+" validation")
	}
	return apperr.E(apperr.Invalid, "invalid payload")
}

// IsValidEmail reports whether s is a plain RFC 5322 address without a
// display name.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s
}

// IsValidHTTPURL reports whether s is an absolute http or https URL.
func IsValidHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsValidObjectID reports whether s parses as a MongoDB ObjectID hex string.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	return err == nil
}

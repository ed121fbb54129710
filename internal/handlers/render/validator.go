package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("payout_destination", validatePayoutDestination)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// validatePayoutDestination accepts UPI-style payout handles: name@provider,
// both parts non-empty, no spaces
func validatePayoutDestination(fl validator.FieldLevel) bool {
	destination := fl.Field().String()

	name, provider, found := strings.Cut(destination, "@")
	if !found || name == "" || provider == "" {
		return false
	}

	return !strings.ContainsAny(destination, " \t")
}

package award

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/blockward/blockward/core"
)

var (
	polarityTag  = "polarity"
	polarityText = "polarity must be one of 'achievement' or 'behaviour'"

	magnitudeText = "magnitude must not be zero"
)

func initValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(polarityTag, polarityValidation)
	core.RegisterCustomTranslation(validate, translator, polarityTag, polarityText)

	validate.RegisterStructValidation(newCategoryStructValidation, NewCategory{})
}

// Custom Validators

// polarityValidation checks that the value is a known Polarity.
func polarityValidation(fl validator.FieldLevel) bool {
	switch Polarity(fl.Field().String()) {
	case PolarityAchievement, PolarityBehaviour:
		return true
	}
	return false
}

// newCategoryStructValidation rejects a zero magnitude; the sign is dropped at
// creation time (polarity carries it), so only `magnitude != 0` matters here.
func newCategoryStructValidation(sl validator.StructLevel) {
	if nc, ok := sl.Current().Interface().(NewCategory); ok {
		if nc.Magnitude == 0 {
			sl.ReportError(nc.Magnitude, "magnitude", "Magnitude", "required", "")
		}
	}
}

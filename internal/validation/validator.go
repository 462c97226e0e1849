package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// a batch may not name the same code twice
	v.RegisterStructValidation(batchStructValidation, batchEnvelope{})

	return v
}

// ValidateBatch runs field and struct-level rules over b.
func ValidateBatch(v *validatorv10.Validate, b ContraIndicatorBatch) error {
	return v.Struct(batchEnvelope{Items: b})
}

func batchStructValidation(sl validatorv10.StructLevel) {
	env := sl.Current().Interface().(batchEnvelope)

	seen := make(map[string]int, len(env.Items))
	for i, ci := range env.Items {
		if first, ok := seen[ci.Code]; ok && ci.Code != "" {
			sl.ReportError(ci.Code, fmt.Sprintf("items[%d].code", i), "Code", "unique_code",
				fmt.Sprintf("duplicate of items[%d]", first))
			continue
		}
		seen[ci.Code] = i
	}
}

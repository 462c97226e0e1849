package validation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// BindAndValidate binds JSON body into `out` and runs validation.
// If validation fails, it writes a 400 response and returns an error for the handler to short-circuit.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		abortInvalidBody(c, err)
		return err
	}

	if err := v.Struct(out); err != nil {
		abortValidation(c, err)
		return err
	}
	return nil
}

// BindBatch binds and validates a CI batch body.
func BindBatch(c *gin.Context, v *validatorv10.Validate) (ContraIndicatorBatch, error) {
	var batch ContraIndicatorBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		abortInvalidBody(c, err)
		return nil, err
	}
	if err := ValidateBatch(v, batch); err != nil {
		abortValidation(c, err)
		return nil, err
	}
	return batch, nil
}

func abortInvalidBody(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": "invalid_request_body",
		"msg":   err.Error(),
	})
}

func abortValidation(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":  "validation_failed",
		"fields": validationErrorsToMap(err),
	})
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Namespace()] = fe.Error()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}

package handler

import (
	"errors"
	"net/http"
	"reflect"

	"numera/internal/apierror"
	"numera/internal/fiscal"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// writeDomainError maps the certification error taxonomy onto HTTP statuses.
// Chronology and duplicate-number conflicts are 409 (the request raced the
// sequence, or is dated in the past); store faults are 5xx.
func writeDomainError(c *gin.Context, err error) {
	var vErr *fiscal.ValidationError
	var cErr *fiscal.ChronologyViolation
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusUnprocessableEntity, apierror.New(vErr.Error()))
	case errors.As(err, &cErr):
		c.JSON(http.StatusConflict, apierror.New(cErr.Error()))
	case errors.Is(err, fiscal.ErrDuplicateNumber):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, fiscal.ErrAllocationFailure):
		c.JSON(http.StatusServiceUnavailable, apierror.New(err.Error()))
	case errors.Is(err, fiscal.ErrPersistenceFailure):
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
	default:
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	}
}

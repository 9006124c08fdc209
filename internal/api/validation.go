package api

import (
	"sync"

	"alcyxob/fitness-coach/internal/pkg/timeutil"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the hhmm and ymd tags to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("hhmm", validateClock)
		_ = v.RegisterValidation("ymd", validateDate)
	})
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := timeutil.ParseClock(fl.Field().String())
	return err == nil
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := timeutil.ParseDate(fl.Field().String())
	return err == nil
}

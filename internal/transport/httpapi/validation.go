package httpapi

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mindcare/booking-core/internal/calendar"
)

type requestValidator struct {
	v *validator.Validate
}

func newValidator() *requestValidator {
	v := validator.New()

	// В деталях ошибок — имена полей из JSON.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := calendar.ParseDate(value)
		return err == nil
	})

	v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := calendar.ParseClock(value)
		return err == nil
	})

	return &requestValidator{v: v}
}

// Struct возвращает ошибки по полям или nil.
func (rv *requestValidator) Struct(s any) map[string]string {
	err := rv.v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"body": err.Error()}
	}
	details := make(map[string]string, len(ve))
	for _, fe := range ve {
		// Namespace без имени корневой структуры: availabilities[0].start_time
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		details[ns] = fe.Tag()
	}
	return details
}

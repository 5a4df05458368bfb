package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/cloo-solutions/nutrirag/internal/domain"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

func initValidator() {
	validateOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		translator, _ = uni.GetTranslator("en")

		validate = validator.New(validator.WithRequiredStructEnabled())

		// prefer json tag names in messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(validate, translator)
	})
}

// DecodeJSON decodes the request body into T and validates it.
// Failures are VALIDATION_ERROR DomainErrors with a user-safe message.
func DecodeJSON[T any](r *http.Request) (T, error) {
	initValidator()

	var dst T
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return dst, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "request body too large", err)
		}
		return dst, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid JSON body", err)
	}
	if dec.More() {
		return dst, domain.NewDomainError(domain.ErrCodeValidation, "unexpected trailing data")
	}

	if err := validate.Struct(dst); err != nil {
		return dst, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, validationMessage(err), domain.ErrInvalidRequest)
	}
	return dst, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Translate(translator)
	}
	return fmt.Sprintf("invalid request: %v", err)
}

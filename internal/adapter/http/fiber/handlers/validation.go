package handlers

import (
	"encoding/base64"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/gofiber/fiber/v2"
)

// Limits bound what the HTTP edge accepts.
type Limits struct {
	MinImageBytes int
	MaxImageBytes int
	MaxTextLength int
}

// DefaultLimits are used for zero fields.
var DefaultLimits = Limits{
	MinImageBytes: 1 << 10,
	MaxImageBytes: 10 << 20,
	MaxTextLength: 500,
}

func (l Limits) withDefaults() Limits {
	if l.MinImageBytes <= 0 {
		l.MinImageBytes = DefaultLimits.MinImageBytes
	}
	if l.MaxImageBytes <= 0 {
		l.MaxImageBytes = DefaultLimits.MaxImageBytes
	}
	if l.MaxTextLength <= 0 {
		l.MaxTextLength = DefaultLimits.MaxTextLength
	}
	return l
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type validatorSvc struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *validatorSvc
)

// validation returns the validator singleton with english messages and json
// field names.
func validation() *validatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		_ = v.RegisterValidation("session_id", func(fl validator.FieldLevel) bool {
			return sessionIDPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterTranslation("session_id", trans,
			func(ut ut.Translator) error {
				return ut.Add("session_id", "{0} must be 1-100 letters, digits, '_' or '-'", true)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				msg, _ := ut.T("session_id", fe.Field())
				return msg
			},
		)

		vSvc = &validatorSvc{validate: v, translator: trans}
	})
	return vSvc
}

// validateStruct returns a 400 fiber error carrying the first translated
// validation message.
func validateStruct(dst interface{}) error {
	svc := validation()
	err := svc.validate.Struct(dst)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return fiber.NewError(fiber.StatusBadRequest, verrs[0].Translate(svc.translator))
	}
	return fiber.NewError(fiber.StatusBadRequest, "validation error")
}

// ValidSessionID checks ids that arrive outside a request body.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// DecodeImage accepts raw base64 or a data URI and returns the decoded bytes
// and their sniffed content type.
func DecodeImage(data string, limits Limits) ([]byte, string, error) {
	limits = limits.withDefaults()
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, "image is required")
	}

	if strings.HasPrefix(data, "data:") {
		comma := strings.IndexByte(data, ',')
		if comma < 0 {
			return nil, "", fiber.NewError(fiber.StatusBadRequest, "malformed data URI")
		}
		header := data[:comma]
		if !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
			return nil, "", fiber.NewError(fiber.StatusBadRequest, "data URI must be a base64 image")
		}
		data = data[comma+1:]
	}

	// base64 expands by 4/3; reject oversized payloads before decoding
	if base64.StdEncoding.DecodedLen(len(data)) > limits.MaxImageBytes+3 {
		return nil, "", fiber.NewError(fiber.StatusRequestEntityTooLarge, "image too large")
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, "invalid base64 image")
	}
	contentType, err := checkImage(raw, limits)
	if err != nil {
		return nil, "", err
	}
	return raw, contentType, nil
}

func checkImage(raw []byte, limits Limits) (string, error) {
	switch {
	case len(raw) < limits.MinImageBytes:
		return "", fiber.NewError(fiber.StatusBadRequest, "image too small")
	case len(raw) > limits.MaxImageBytes:
		return "", fiber.NewError(fiber.StatusRequestEntityTooLarge, "image too large")
	}
	contentType := http.DetectContentType(raw)
	if !allowedImageTypes[contentType] {
		return "", fiber.NewError(fiber.StatusUnsupportedMediaType, "image must be jpeg, png or webp")
	}
	return contentType, nil
}

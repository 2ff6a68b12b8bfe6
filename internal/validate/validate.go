package validate

import (
	"errors"
	"fmt"
	"mime"
	"reflect"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

const pdfMIME = "application/pdf"

// ErrValidation общий признак клиентской ошибки валидации, запрос в backend не уходит.
var ErrValidation = errors.New("validation failed")

type Code string

const (
	CodeInvalid         Code = "INVALID"
	CodeTooLarge        Code = "FILE_TOO_LARGE"
	CodeUnsupportedType Code = "UNSUPPORTED_FILE_TYPE"
)

type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == ErrValidation
}

type Validator struct {
	v             *validator.Validate
	maxUploadSize int64
}

func New(maxUploadSize int64) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{v: v, maxUploadSize: maxUploadSize}
}

func (v *Validator) MaxUploadSize() int64 {
	return v.maxUploadSize
}

// Struct проверяет форму по тегам validate.
func (v *Validator) Struct(s interface{}) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate request: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := describe(fe)
		fields[fe.Field()] = msg
		messages = append(messages, fe.Field()+": "+msg)
	}

	return &Error{
		Code:    CodeInvalid,
		Message: strings.Join(messages, "; "),
		Fields:  fields,
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}

// PDF проверяет файл ответа до загрузки: размер, заявленный MIME и сигнатуру содержимого.
func (v *Validator) PDF(f *models.FileUpload) error {
	if f == nil || len(f.Content) == 0 {
		return &Error{Code: CodeInvalid, Message: "please select a file to submit", Fields: map[string]string{"file": "is required"}}
	}

	size := f.Size
	if size < int64(len(f.Content)) {
		size = int64(len(f.Content))
	}
	if size > v.maxUploadSize {
		return &Error{
			Code:    CodeTooLarge,
			Message: fmt.Sprintf("file size %d exceeds limit of %d bytes", size, v.maxUploadSize),
			Fields:  map[string]string{"file": "is too large"},
		}
	}

	declared := f.ContentType
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mt
	}
	if !strings.EqualFold(declared, pdfMIME) {
		return &Error{
			Code:    CodeUnsupportedType,
			Message: "please select a PDF file",
			Fields:  map[string]string{"file": "must be application/pdf"},
		}
	}

	if !mimetype.Detect(f.Content).Is(pdfMIME) {
		return &Error{
			Code:    CodeUnsupportedType,
			Message: "file content is not a PDF document",
			Fields:  map[string]string{"file": "must be application/pdf"},
		}
	}

	return nil
}

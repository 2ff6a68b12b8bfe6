package httpd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/validate"
)

// formOverhead запас на поля формы сверх лимита файла.
const formOverhead = 1 << 20

// parseMultipart ограничивает тело запроса, чтобы слишком большой файл не читался целиком.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.validator.MaxUploadSize()+formOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &validate.Error{
				Code:    validate.CodeTooLarge,
				Message: fmt.Sprintf("file exceeds limit of %d bytes", h.validator.MaxUploadSize()),
				Fields:  map[string]string{"file": "is too large"},
			}
		}
		return &validate.Error{
			Code:    validate.CodeInvalid,
			Message: "failed to parse form data",
		}
	}
	return nil
}

// formFile читает файл из первой найденной части формы. Отсутствие файла не ошибка:
// решение принимает валидатор.
func formFile(r *http.Request, fields ...string) (*models.FileUpload, error) {
	for _, field := range fields {
		file, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read form file: %w", err)
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read form file: %w", err)
		}

		return &models.FileUpload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Content:     content,
		}, nil
	}
	return nil, nil
}

// formList собирает значения "sections[]", "sections" и списки через запятую.
func formList(r *http.Request, field string) []string {
	var out []string
	for _, key := range []string{field + "[]", field} {
		for _, v := range r.MultipartForm.Value[key] {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

func formValue(r *http.Request, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(r.FormValue(key)); v != "" {
			return v
		}
	}
	return ""
}

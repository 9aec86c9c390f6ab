package common

import (
	"path/filepath"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// UploadFile is the provenance of one uploaded file, checked before it enters the pipeline.
type UploadFile struct {
	OriginalName string
	Size         int64
}

// ValidateUpload checks a single uploaded file against the configured byte limit.
func ValidateUpload(f UploadFile, maxBytes int64) error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.OriginalName,
			validation.Required,
			validation.Length(1, 255),
			validation.By(noPathSeparators),
		),
		validation.Field(&f.Size, validation.Min(int64(0)), validation.Max(maxBytes)),
	)
	if err != nil {
		return NewAppError("INVALID_UPLOAD", err.Error(), ErrValidation)
	}
	return nil
}

// ParseDocumentID parses a path parameter into a positive document id.
func ParseDocumentID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, InvalidInputf("invalid document id %q", raw)
	}
	if err := validation.Validate(id, validation.Min(int64(1))); err != nil {
		return 0, InvalidInputf("invalid document id %q: %v", raw, err)
	}
	return id, nil
}

func noPathSeparators(value any) error {
	s, _ := value.(string)
	if filepath.Base(s) != s || strings.ContainsAny(s, `/\`) {
		return validation.NewError("validation_filename_path", "must not contain path separators")
	}
	return nil
}

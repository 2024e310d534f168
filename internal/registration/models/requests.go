package models

import (
	"strconv"
	"strings"

	dErrors "imageref/pkg/domain-errors"
)

// CheckEmailRequest is the query of GET /check-email.
type CheckEmailRequest struct {
	Email string
}

func (r *CheckEmailRequest) Sanitize() {
	r.Email = strings.TrimSpace(r.Email)
}

func (r *CheckEmailRequest) Validate() error {
	if r.Email == "" {
		return dErrors.New(dErrors.CodeBadRequest, "email is required")
	}
	if len(r.Email) > MaxEmailLength {
		return dErrors.New(dErrors.CodeBadRequest, "email is too long")
	}
	return nil
}

// UploadForm holds the text fields of POST /upload-image.
type UploadForm struct {
	ChildName string
	Email     string
	RawAge    string

	Age int
}

func (f *UploadForm) Sanitize() {
	f.ChildName = strings.TrimSpace(f.ChildName)
	f.Email = strings.TrimSpace(f.Email)
	f.RawAge = strings.TrimSpace(f.RawAge)
}

// Validate parses the age and checks it lands in a category before any file
// is touched.
func (f *UploadForm) Validate() error {
	if f.ChildName == "" {
		return dErrors.New(dErrors.CodeBadRequest, "childName is required")
	}
	if f.Email == "" {
		return dErrors.New(dErrors.CodeBadRequest, "email is required")
	}
	if len(f.ChildName) > MaxNameLength || len(f.Email) > MaxEmailLength {
		return dErrors.New(dErrors.CodeBadRequest, "field too long")
	}
	age, err := strconv.Atoi(f.RawAge)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidAge, "age must be a whole number")
	}
	if _, err := BucketFor(age); err != nil {
		return err
	}
	f.Age = age
	return nil
}

// Field length limits for request values.
const (
	MaxEmailLength = 254
	MaxNameLength  = 200
)

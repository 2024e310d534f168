package testutil

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"testing"

	"imageref/internal/registration/models"
)

// Family returns the two-child ledger used across workflow tests: Asha (7)
// and Ravi (10) share a@x.com, Kabir (13) is already done under k@y.org.
func Family() []models.Record {
	return []models.Record{
		{ChildName: "Asha", ParentName: "Meera Rao", DateOfBirth: "2017-03-02", Age: 7, Gender: "F", EducationBoard: "CBSE", Grade: "2", Section: "B", CountryCode: "+91", PhoneNumber: "9800000001", Email: "a@x.com", RegistrationID: "REG-001", Status: models.StatusPending},
		{ChildName: "Ravi", ParentName: "Meera Rao", DateOfBirth: "2014-06-11", Age: 10, Gender: "M", EducationBoard: "CBSE", Grade: "5", Section: "A", CountryCode: "+91", PhoneNumber: "9800000001", Email: "a@x.com", RegistrationID: "REG-002", Status: models.StatusPending},
		{ChildName: "Kabir", ParentName: "Arjun Singh", DateOfBirth: "2011-01-20", Age: 13, Gender: "M", EducationBoard: "ICSE", Grade: "8", Section: "C", CountryCode: "+91", PhoneNumber: "9800000002", Email: "k@y.org", RegistrationID: "REG-003", Status: models.StatusDone},
	}
}

// WriteUpload spools content to a temp file and returns it as an Upload.
func WriteUpload(t *testing.T, dir, originalName string, content []byte) models.Upload {
	t.Helper()
	f, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		t.Fatalf("create upload: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return models.Upload{Path: f.Name(), OriginalName: originalName, Size: int64(len(content))}
}

// MultipartUpload builds a multipart body with the given text fields and, when
// fileName is non-empty, a "file" part.
func MultipartUpload(t *testing.T, fields map[string]string, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, mw.FormDataContentType()
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

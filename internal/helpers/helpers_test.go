package helpers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/farellandr/ticketgate/internal/apperr"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", apperr.ErrValidation), http.StatusBadRequest},
		{apperr.ErrUnauthorized, http.StatusUnauthorized},
		{apperr.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: sig", apperr.ErrPaymentRejected), http.StatusPaymentRequired},
		{apperr.ErrVerificationUnavailable, http.StatusServiceUnavailable},
		{apperr.ErrNotFound, http.StatusNotFound},
		{apperr.ErrOrderCreation, http.StatusBadGateway},
		{apperr.ErrStorage, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID(" 42 "); err != nil || id != 42 {
		t.Errorf("ParseID = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-1", "abc"} {
		if _, err := ParseID(bad); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("ParseID(%q) err = %v", bad, err)
		}
	}
}

func TestIsSlug(t *testing.T) {
	for s, want := range map[string]bool{
		"pitch-night":  true,
		"ai2026":       true,
		"Pitch-Night":  false,
		"-leading":     false,
		"double--dash": false,
		"":             false,
		"has space":    false,
	} {
		if got := IsSlug(s); got != want {
			t.Errorf("IsSlug(%q) = %v, want %v", s, got, want)
		}
	}
}

type memWriter struct {
	path, contentType string
	data              []byte
}

func (m *memWriter) Put(_ context.Context, p string, data []byte, ct string) error {
	m.path, m.data, m.contentType = p, data, ct
	return nil
}

func multipartFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(content)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	return req.MultipartForm.File["image"][0]
}

func TestUploadImage(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

	w := &memWriter{}
	path, err := UploadImage(context.Background(), w, multipartFile(t, "cover.jpg", png), "events/demo-day", "cover")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if path != "events/demo-day/cover.png" || w.contentType != "image/png" {
		t.Errorf("path = %s type = %s", path, w.contentType)
	}

	if _, err := UploadImage(context.Background(), w, multipartFile(t, "notes.png", []byte("plain text")), "events/x", "cover"); err == nil {
		t.Error("expected text upload to be refused")
	}

	small := UploadConfig{MaxSizeBytes: 10, AllowedMimeTypes: []string{"image/png"}}
	if _, err := UploadImage(context.Background(), w, multipartFile(t, "big.png", png), "events/x", "", small); err == nil {
		t.Error("expected oversized upload to be refused")
	}
}

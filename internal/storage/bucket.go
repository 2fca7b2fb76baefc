// Package storage keeps ticket QR images and event covers in a bucket and hands out
// (optionally signed) links to them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/farellandr/ticketgate/internal/helpers"
)

var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrSigningUnavailable = errors.New("url signing not configured")
	ErrInvalidSignature   = errors.New("invalid or expired url signature")
	ErrInvalidPath        = errors.New("invalid object path")
)

// PublicPrefix marks objects served without a signature (event covers).
const PublicPrefix = "events/"

type Object struct {
	Data        []byte
	ContentType string
}

type Bucket interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) error
	Get(ctx context.Context, objectPath string) (*Object, error)
	SignedURL(objectPath string, ttl time.Duration) (string, error)
	PublicURL(objectPath string) string
	Ping(ctx context.Context) error
}

// Signer builds /files links and checks their signatures.
type Signer struct {
	baseURL string
	key     string
	now     func() time.Time
}

func NewSigner(publicBaseURL, signingKey string) *Signer {
	return &Signer{
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		key:     signingKey,
		now:     time.Now,
	}
}

func (s *Signer) PublicURL(objectPath string) string {
	return s.baseURL + "/files/" + escapePath(objectPath)
}

func (s *Signer) SignedURL(objectPath string, ttl time.Duration) (string, error) {
	if s.key == "" {
		return "", ErrSigningUnavailable
	}
	exp := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)

	q := url.Values{}
	q.Set("exp", exp)
	q.Set("sig", helpers.SignHex(s.key, objectPath+"|"+exp))
	return s.PublicURL(objectPath) + "?" + q.Encode(), nil
}

// Authorize decides whether a /files request may read objectPath. Without a signing
// key the bucket behaves as public.
func (s *Signer) Authorize(objectPath, exp, sig string) error {
	if s.key == "" || strings.HasPrefix(objectPath, PublicPrefix) {
		return nil
	}

	expires, err := strconv.ParseInt(exp, 10, 64)
	if err != nil || s.now().Unix() > expires {
		return ErrInvalidSignature
	}
	if !helpers.VerifyHex(s.key, objectPath+"|"+exp, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// CleanPath normalizes an object path and refuses anything escaping the bucket root.
func CleanPath(objectPath string) (string, error) {
	p := strings.TrimPrefix(objectPath, "/")
	if p == "" || strings.Contains(p, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}
	for _, part := range strings.Split(p, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
		}
	}
	return path.Clean(p), nil
}

func escapePath(objectPath string) string {
	parts := strings.Split(objectPath, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

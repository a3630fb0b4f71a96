// Package upload stores news images on local disk under generated names.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const DefaultMaxBytes = 5 << 20 // 5 MB

var (
	ErrTooLarge        = errors.New("image must not exceed 5 MB")
	ErrUnsupportedType = errors.New("only image uploads are allowed")
	ErrNotFound        = errors.New("image not found")
	ErrInvalidName     = errors.New("invalid image name")
)

// allowedMIME maps accepted image types to their file extension.
var allowedMIME = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DiskStore writes images into one directory.
type DiskStore struct {
	dir      string
	maxBytes int64
}

func NewDiskStore(dir string, maxBytes int64) (*DiskStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: create %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, maxBytes: maxBytes}, nil
}

// Put stores the image read from r and returns its generated name. The
// declared content type is trusted only when it is an allowed image type;
// otherwise the first bytes are sniffed.
func (d *DiskStore) Put(ctx context.Context, r io.Reader, contentType string) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("upload: read: %w", err)
	}
	head = head[:n]

	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := allowedMIME[mediaType]
	if !ok {
		ext, ok = allowedMIME[http.DetectContentType(head)]
	}
	if !ok {
		return "", ErrUnsupportedType
	}

	name := uuid.New().String() + ext
	path := filepath.Join(d.dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("upload: create: %w", err)
	}

	src := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), d.maxBytes+1)
	written, err := io.Copy(dst, ctxReader{ctx, src})
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > d.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path) //nolint:errcheck // best-effort cleanup
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("upload: write: %w", err)
	}
	return name, nil
}

// Delete removes a stored image; a missing file is not an error.
func (d *DiskStore) Delete(_ context.Context, name string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	if err := os.Remove(filepath.Join(d.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("upload: delete: %w", err)
	}
	return nil
}

// Path resolves a stored image name to a file path, rejecting traversal.
func (d *DiskStore) Path(name string) (string, error) {
	if !validName(name) {
		return "", ErrInvalidName
	}
	path := filepath.Join(d.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("upload: stat: %w", err)
	}
	return path, nil
}

func validName(name string) bool {
	return name != "" && !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

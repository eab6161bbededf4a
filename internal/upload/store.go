package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen matches the number of bytes mimetype inspects by default.
const sniffLen = 3072

var allowedTypes = []string{"image/png", "image/jpeg"}

// Store writes uploaded images to a local directory and serves them under
// urlPrefix.
type Store struct {
	dir       string
	urlPrefix string
	maxSize   int64
}

func NewStore(dir, urlPrefix string, maxSize int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{
		dir:       dir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		maxSize:   maxSize,
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save sniffs the content type and stores the image under a random name.
// Anything that is not PNG or JPEG is rejected with a validation error on
// the image field.
func (s *Store) Save(r io.Reader) (string, error) {
	header := make([]byte, sniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	header = header[:n]

	mtype := mimetype.Detect(header)
	if n == 0 || !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		return "", imageError("attached file is not an image", "mime_type")
	}

	name := uuid.NewString() + mtype.Extension()
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	src := io.MultiReader(bytes.NewReader(header), r)
	if s.maxSize > 0 {
		src = io.LimitReader(src, s.maxSize+1)
	}
	written, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.maxSize > 0 && written > s.maxSize {
		err = imageError(fmt.Sprintf("image must be at most %d bytes", s.maxSize), "max_size")
	}
	if err != nil {
		_ = os.Remove(path)
		if _, ok := domain.IsValidation(err); ok {
			return "", err
		}
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return s.urlPrefix + "/" + name, nil
}

// Remove deletes a file previously returned by Save. URLs that do not
// belong to this store are ignored.
func (s *Store) Remove(url string) error {
	if !strings.HasPrefix(url, s.urlPrefix+"/") {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(url, s.urlPrefix+"/"))
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}

func imageError(message, code string) error {
	return domain.NewValidationError("invalid image", nil, domain.FieldError{
		Field:   "image",
		Message: message,
		Code:    code,
	})
}

package storage

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"postboard/pkg/apierror"
)

// Store persists uploaded files below a single root directory. All names are
// validated so a stored filename can never escape the root.
type Store struct {
	rootAbs string
}

func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("upload root cannot be empty")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}

	if err := os.MkdirAll(rootAbs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}

	return &Store{rootAbs: rootAbs}, nil
}

func (s *Store) RootAbs() string {
	return s.rootAbs
}

// Resolve maps a stored filename to its absolute path, rejecting traversal
// and control characters.
func (s *Store) Resolve(filename string) (string, error) {
	name := strings.TrimSpace(filename)
	if name == "" {
		return "", apierror.New("INVALID_FILENAME", "filename cannot be empty", "", http.StatusBadRequest)
	}

	if strings.ContainsAny(name, `/\`) || name == ".." || hasControlCharacters(name) {
		return "", apierror.New("INVALID_FILENAME", "filename contains invalid characters", filename, http.StatusBadRequest)
	}

	resolved := filepath.Join(s.rootAbs, filepath.Clean(name))
	if !isWithinRoot(s.rootAbs, resolved) {
		return "", apierror.New("INVALID_FILENAME", "resolved path is outside upload root", filename, http.StatusForbidden)
	}

	return resolved, nil
}

// Save writes content to filename, failing if the file already exists.
// It returns the number of bytes written.
func (s *Store) Save(filename string, content io.Reader) (int64, error) {
	resolved, err := s.Resolve(filename)
	if err != nil {
		return 0, err
	}

	file, err := os.OpenFile(resolved, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create upload %q: %w", filename, err)
	}

	written, err := io.Copy(file, content)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(resolved)
		return 0, fmt.Errorf("write upload %q: %w", filename, err)
	}

	return written, nil
}

func (s *Store) Open(filename string) (*os.File, os.FileInfo, error) {
	resolved, err := s.Resolve(filename)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		return nil, nil, err
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}

	return file, info, nil
}

func (s *Store) Remove(filename string) error {
	resolved, err := s.Resolve(filename)
	if err != nil {
		return err
	}

	if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload %q: %w", filename, err)
	}

	return nil
}

func hasControlCharacters(value string) bool {
	for _, char := range value {
		if unicode.IsControl(char) {
			return true
		}
	}

	return false
}

func isWithinRoot(rootAbs string, candidateAbs string) bool {
	if candidateAbs == rootAbs {
		return false
	}

	return strings.HasPrefix(candidateAbs, rootAbs+string(filepath.Separator))
}

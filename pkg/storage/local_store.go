package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidHandle is returned for handles that are empty or escape the base directory.
var ErrInvalidHandle = errors.New("invalid file handle")

// LocalFileStore persists files on disk under a base directory. Handles are
// slash separated paths relative to that directory.
type LocalFileStore struct {
	baseDir       string
	publicBaseURL string
	downloadPath  string
	signer        *SignedURLSigner
}

// Option customises a LocalFileStore.
type Option func(*LocalFileStore)

// WithPublicBaseURL serves files from a static base URL instead of signed links.
func WithPublicBaseURL(base string) Option {
	return func(s *LocalFileStore) {
		s.publicBaseURL = strings.TrimRight(base, "/")
	}
}

// WithSigner issues signed download links rooted at downloadPath.
func WithSigner(signer *SignedURLSigner, downloadPath string) Option {
	return func(s *LocalFileStore) {
		s.signer = signer
		s.downloadPath = strings.TrimRight(downloadPath, "/")
	}
}

// NewLocalFileStore ensures the base directory exists and returns a store.
func NewLocalFileStore(baseDir string, opts ...Option) (*LocalFileStore, error) {
	if baseDir == "" {
		baseDir = "./storage"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	s := &LocalFileStore{baseDir: baseDir}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store writes data under namespace with a generated name and returns its handle.
func (s *LocalFileStore) Store(ctx context.Context, data []byte, namespace, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	handle := path.Join(cleanNamespace(namespace), name)
	target, err := s.resolve(handle)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("prepare storage directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return handle, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalFileStore) Open(handle string) (*os.File, error) {
	target, err := s.resolve(handle)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file. It reports false when nothing was there.
func (s *LocalFileStore) Delete(ctx context.Context, handle string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	target, err := s.resolve(handle)
	if err != nil {
		return false, err
	}
	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete file: %w", err)
	}
	return true, nil
}

// Exists reports whether handle points at a regular file.
func (s *LocalFileStore) Exists(ctx context.Context, handle string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	target, err := s.resolve(handle)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat file: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Move relocates handle into namespace keeping its base name, so moving it
// back to the original namespace restores the original handle.
func (s *LocalFileStore) Move(ctx context.Context, handle, namespace string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	source, err := s.resolve(handle)
	if err != nil {
		return "", err
	}
	moved := path.Join(cleanNamespace(namespace), path.Base(handle))
	target, err := s.resolve(moved)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("prepare storage directory: %w", err)
	}
	if err := os.Rename(source, target); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("move file: %w", os.ErrNotExist)
		}
		if err := copyFile(source, target); err != nil {
			return "", fmt.Errorf("move file: %w", err)
		}
		_ = os.Remove(source)
	}
	return moved, nil
}

// URL returns a link for handle, or false when no link can be produced.
func (s *LocalFileStore) URL(handle string) (string, bool) {
	if handle == "" {
		return "", false
	}
	if _, err := s.resolve(handle); err != nil {
		return "", false
	}
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + handle, true
	}
	if s.signer == nil {
		return "", false
	}
	token, _, err := s.signer.Sign(handle)
	if err != nil {
		return "", false
	}
	return s.downloadPath + "/" + token, true
}

// ListOlderThan walks prefix and returns handles last modified before now-ttl.
func (s *LocalFileStore) ListOlderThan(prefix string, ttl time.Duration) ([]string, error) {
	root, err := s.resolve(cleanNamespace(prefix))
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-ttl)
	handles := make([]string, 0)
	err = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return err
		}
		handles = append(handles, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return handles, nil
}

func (s *LocalFileStore) resolve(handle string) (string, error) {
	if handle == "" || path.IsAbs(handle) || filepath.IsAbs(handle) {
		return "", ErrInvalidHandle
	}
	cleaned := path.Clean(handle)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidHandle
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(cleaned)), nil
}

func cleanNamespace(namespace string) string {
	return strings.Trim(path.Clean("/"+namespace), "/")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

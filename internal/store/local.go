package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"photobooth-kiosk/internal/models"
)

// LocalStorage writes objects under a directory and signs retrieval links
// as short-lived HS256 tokens.
type LocalStorage struct {
	root    string
	baseURL string
	secret  []byte
}

// NewLocalStorage serves links as {baseURL}/api/v1/local-storage/{path}?token=...
func NewLocalStorage(root, baseURL string, secret []byte) (*LocalStorage, error) {
	if len(secret) == 0 {
		return nil, errors.New("local storage requires a signing secret")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStorage{root: root, baseURL: strings.TrimRight(baseURL, "/"), secret: secret}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	full, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create object dir: %w", err)
	}
	tmp := full + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return fmt.Errorf("failed to commit object: %w", err)
	}
	return nil
}

func (s *LocalStorage) SignedURL(ctx context.Context, objectPath string, ttlSeconds int) (string, error) {
	full, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("object %s: %w", objectPath, models.ErrNotFound)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   objectPath,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlSeconds) * time.Second)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign url: %w", err)
	}
	return fmt.Sprintf("%s/api/v1/local-storage/%s?token=%s", s.baseURL, objectPath, url.QueryEscape(signed)), nil
}

// Verify checks a token produced by SignedURL against the requested path.
func (s *LocalStorage) Verify(objectPath, token string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("invalid signed url: %w", err)
	}
	if claims.Subject != objectPath {
		return errors.New("signed url does not match object")
	}
	return nil
}

func (s *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	dir, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".part") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *LocalStorage) Download(ctx context.Context, objectPath string) ([]byte, error) {
	full, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s: %w", objectPath, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	return data, nil
}

// resolve maps an object path into root, rejecting traversal.
func (s *LocalStorage) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if strings.Contains(objectPath, "..") {
		return "", models.NewValidationError("path", "path must not contain ..")
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

package reportapi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoCredential = errors.New("no stored credential")

type CredentialStore interface {
	Token(ctx context.Context) (string, error)
}

type StaticCredentials string

func (s StaticCredentials) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// FileCredentials reads the bearer token saved by the login flow. A missing or
// empty file means the user is signed out.
type FileCredentials struct {
	Path string
}

func (f FileCredentials) Token(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

type EnvCredentials struct {
	Key string
}

func (e EnvCredentials) Token(context.Context) (string, error) {
	token := strings.TrimSpace(os.Getenv(e.Key))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "lab-report-access", "token"), nil
}

// checkExpiry rejects JWTs whose exp claim has passed. Opaque tokens are left
// to the server; signatures are never verified here.
func checkExpiry(token string, now time.Time) error {
	if strings.Count(token, ".") != 2 {
		return nil
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return fmt.Errorf("credential expired at %s", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
	}
	return nil
}

// Package auth provides access tokens for authenticating against Limoo.
//
// The WebSocket handshake and REST requests both carry the token as a
// cookie: "Cookie: ACCESSTOKEN=<token>".
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// CookieName is the cookie carrying the access token.
const CookieName = "ACCESSTOKEN"

// ErrNoToken is returned when a source has no token to offer.
var ErrNoToken = errors.New("no access token available")

// TokenSource supplies the current access token. It is called on every
// connection attempt, so implementations may rotate tokens between calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenSourceFunc is a function adapter for TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) AccessToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken always returns the same token.
type StaticToken string

// AccessToken returns the token.
func (s StaticToken) AccessToken(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// FileToken reads the token from a file on every call.
// Leading and trailing whitespace is trimmed.
type FileToken struct {
	Path string
}

// AccessToken reads and returns the token stored at Path.
func (f FileToken) AccessToken(context.Context) (string, error) {
	if f.Path == "" {
		return "", fmt.Errorf("token file path is required")
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s: %w", f.Path, ErrNoToken)
	}
	return token, nil
}

// EnvToken reads the token from an environment variable on every call.
type EnvToken string

// AccessToken returns the value of the named environment variable.
func (e EnvToken) AccessToken(context.Context) (string, error) {
	token := strings.TrimSpace(os.Getenv(string(e)))
	if token == "" {
		return "", fmt.Errorf("env %s: %w", string(e), ErrNoToken)
	}
	return token, nil
}

// CookieHeader formats the Cookie header value for a token.
func CookieHeader(token string) string {
	return CookieName + "=" + token
}

// SetCookie fetches the current token and sets it on the header.
func SetCookie(ctx context.Context, src TokenSource, header http.Header) error {
	token, err := src.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("get access token: %w", err)
	}
	header.Set("Cookie", CookieHeader(token))
	return nil
}

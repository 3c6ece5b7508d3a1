// Package auth turns the credentials presented by a client into a verified
// identity. It never contacts the issuing service; trust comes from the shared
// signing secret held by the token verifier.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/qbridge/chat-service/internal/core/domain"
	"github.com/qbridge/chat-service/internal/core/ports"
)

// DefaultCookieName is the auth cookie set by the authentication service.
const DefaultCookieName = "qbridge_iam"

// Source records where a token was found.
type Source string

const (
	SourceCookie     Source = "cookie"
	SourceCredential Source = "credential"
)

// Handshake is what a client presents when it connects: the cookies sent with
// the request and an explicit credential field.
type Handshake struct {
	Cookies    []*http.Cookie
	Credential string
}

// BearerHandshake collects the cookies of r and the token of an
// "Authorization: Bearer" header.
func BearerHandshake(r *http.Request) Handshake {
	h := Handshake{Cookies: r.Cookies()}
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			h.Credential = strings.TrimSpace(parts[1])
		}
	}
	return h
}

// HandshakeFromRequest is BearerHandshake with a fallback to the "token"
// query parameter, for browser socket clients that cannot set headers.
func HandshakeFromRequest(r *http.Request) Handshake {
	h := BearerHandshake(r)
	if h.Credential == "" {
		h.Credential = r.URL.Query().Get("token")
	}
	return h
}

// Result is the outcome of a successful authentication.
type Result struct {
	Identity domain.Identity
	Source   Source
}

// Authenticator runs the extract and verify steps of a handshake.
type Authenticator struct {
	cookieName string
	verifier   ports.TokenVerifier
}

// NewAuthenticator returns an Authenticator reading the cookie named
// cookieName. An empty name falls back to DefaultCookieName.
func NewAuthenticator(cookieName string, verifier ports.TokenVerifier) *Authenticator {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Authenticator{cookieName: cookieName, verifier: verifier}
}

// Authenticate extracts one token from h and verifies it.
// A handshake without any token fails with domain.ErrUnauthenticated;
// verification failures carry domain.ErrTokenInvalid or domain.ErrTokenExpired.
func (a *Authenticator) Authenticate(h Handshake) (Result, error) {
	raw, src, err := a.extract(h)
	if err != nil {
		return Result{}, err
	}

	identity, err := a.verifier.Verify(raw)
	if err != nil {
		return Result{}, fmt.Errorf("authenticate via %s: %w", src, err)
	}
	return Result{Identity: identity, Source: src}, nil
}

// extract picks the cookie when present, otherwise the explicit credential.
// Only one source is ever used.
func (a *Authenticator) extract(h Handshake) (string, Source, error) {
	for _, c := range h.Cookies {
		if c != nil && c.Name == a.cookieName && c.Value != "" {
			return c.Value, SourceCookie, nil
		}
	}
	if cred := strings.TrimSpace(h.Credential); cred != "" {
		return cred, SourceCredential, nil
	}
	return "", "", domain.ErrUnauthenticated
}

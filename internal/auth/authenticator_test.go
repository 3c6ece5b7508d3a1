package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/qbridge/chat-service/internal/core/domain"
	"github.com/qbridge/chat-service/pkg/token"
)

func newCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec([]byte("test-secret"))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return codec
}

func issue(t *testing.T, codec *token.Codec, subject string) string {
	t.Helper()
	raw, err := codec.Issue(domain.Identity{SubjectID: subject, Email: subject + "@qbridge.io", Role: domain.RoleOps})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return raw
}

func TestAuthenticate_Cookie(t *testing.T) {
	codec := newCodec(t)
	a := NewAuthenticator("", codec)

	res, err := a.Authenticate(Handshake{
		Cookies: []*http.Cookie{{Name: "other", Value: "x"}, {Name: DefaultCookieName, Value: issue(t, codec, "alice")}},
	})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if res.Source != SourceCookie {
		t.Fatalf("expected cookie source, got %s", res.Source)
	}
	if res.Identity.SubjectID != "alice" || res.Identity.Role != domain.RoleOps {
		t.Fatalf("unexpected identity: %+v", res.Identity)
	}
}

func TestAuthenticate_CookieWinsOverCredential(t *testing.T) {
	codec := newCodec(t)
	a := NewAuthenticator("chat_session", codec)

	res, err := a.Authenticate(Handshake{
		Cookies:    []*http.Cookie{{Name: "chat_session", Value: issue(t, codec, "alice")}},
		Credential: issue(t, codec, "bob"),
	})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if res.Identity.SubjectID != "alice" {
		t.Fatalf("expected cookie identity, got %s", res.Identity.SubjectID)
	}
}

func TestAuthenticate_CredentialFallback(t *testing.T) {
	codec := newCodec(t)
	a := NewAuthenticator("", codec)

	res, err := a.Authenticate(Handshake{Credential: issue(t, codec, "bob")})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if res.Source != SourceCredential || res.Identity.SubjectID != "bob" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestAuthenticate_BadCookieIsNotMergedWithCredential(t *testing.T) {
	codec := newCodec(t)
	a := NewAuthenticator("", codec)

	_, err := a.Authenticate(Handshake{
		Cookies:    []*http.Cookie{{Name: DefaultCookieName, Value: "garbage"}},
		Credential: issue(t, codec, "bob"),
	})
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAuthenticate_Missing(t *testing.T) {
	a := NewAuthenticator("", newCodec(t))

	if _, err := a.Authenticate(Handshake{}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := a.Authenticate(Handshake{Credential: "   "}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for blank credential, got %v", err)
	}
}

func TestAuthenticate_Expired(t *testing.T) {
	past := time.Now().Add(-8 * 24 * time.Hour)
	issuer, err := token.NewCodec([]byte("test-secret"), token.WithClock(func() time.Time { return past }))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	a := NewAuthenticator("", newCodec(t))

	_, err = a.Authenticate(Handshake{Credential: issue(t, issuer, "alice")})
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestHandshakeFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")

	h := HandshakeFromRequest(req)
	if h.Credential != "from-header" {
		t.Fatalf("expected header credential, got %q", h.Credential)
	}
	if len(h.Cookies) != 1 || h.Cookies[0].Value != "from-cookie" {
		t.Fatalf("unexpected cookies: %+v", h.Cookies)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	req.Header.Set("Authorization", "Token nope")
	if got := HandshakeFromRequest(req).Credential; got != "from-query" {
		t.Fatalf("expected query credential, got %q", got)
	}

	if got := BearerHandshake(req).Credential; got != "" {
		t.Fatalf("expected no bearer credential, got %q", got)
	}
}

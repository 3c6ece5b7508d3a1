package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/qbridge/chat-service/internal/core/domain"
)

var issuedAt = time.Date(2026, 2, 19, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestCodec(t *testing.T, secret string, now time.Time) *Codec {
	t.Helper()
	c, err := NewCodec([]byte(secret), WithClock(fixedClock(now)), WithTTL(time.Hour))
	require.NoError(t, err)
	return c
}

func TestNewCodec_EmptySecret(t *testing.T) {
	_, err := NewCodec(nil)
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestCodec_RoundTrip(t *testing.T) {
	req := require.New(t)
	codec := newTestCodec(t, "shared-secret", issuedAt)

	want := domain.Identity{
		SubjectID: "65f1c0ffee",
		Email:     "ops@qbridge.io",
		Role:      domain.RoleOps,
		ExpiresAt: issuedAt.Add(30 * time.Minute),
	}

	raw, err := codec.Issue(want)
	req.NoError(err)

	got, err := codec.Verify(raw)
	req.NoError(err)
	req.Equal(want.SubjectID, got.SubjectID)
	req.Equal(want.Email, got.Email)
	req.Equal(want.Role, got.Role)
	req.True(want.ExpiresAt.Equal(got.ExpiresAt), "want %v, got %v", want.ExpiresAt, got.ExpiresAt)
}

func TestCodec_Issue_DefaultsExpiryToTTL(t *testing.T) {
	req := require.New(t)
	codec := newTestCodec(t, "shared-secret", issuedAt)

	raw, err := codec.Issue(domain.Identity{SubjectID: "u1", Role: domain.RoleViewer})
	req.NoError(err)

	got, err := codec.Verify(raw)
	req.NoError(err)
	req.True(got.ExpiresAt.Equal(issuedAt.Add(time.Hour)))
}

func TestCodec_Issue_RequiresSubject(t *testing.T) {
	codec := newTestCodec(t, "shared-secret", issuedAt)

	_, err := codec.Issue(domain.Identity{Email: "nobody@qbridge.io"})
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestCodec_Verify_Expired(t *testing.T) {
	issuer := newTestCodec(t, "shared-secret", issuedAt)
	raw, err := issuer.Issue(domain.Identity{SubjectID: "u1"})
	require.NoError(t, err)

	cases := []struct {
		name string
		now  time.Time
		want error
	}{
		{"just before expiry", issuedAt.Add(time.Hour - time.Second), nil},
		{"at expiry", issuedAt.Add(time.Hour), domain.ErrTokenExpired},
		{"long after expiry", issuedAt.Add(48 * time.Hour), domain.ErrTokenExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := newTestCodec(t, "shared-secret", tc.now)
			_, err := verifier.Verify(raw)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCodec_Verify_Invalid(t *testing.T) {
	codec := newTestCodec(t, "shared-secret", issuedAt)
	other := newTestCodec(t, "another-secret", issuedAt)

	valid, err := codec.Issue(domain.Identity{SubjectID: "u1", Role: domain.RoleOwner})
	require.NoError(t, err)
	foreign, err := other.Issue(domain.Identity{SubjectID: "u1", Role: domain.RoleOwner})
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	require.Len(t, parts, 3)
	// Swap in the payload of a token for a different role, keep the signature.
	elevated, err := other.Issue(domain.Identity{SubjectID: "u2", Role: domain.RoleOwner})
	require.NoError(t, err)
	tampered := parts[0] + "." + strings.Split(elevated, ".")[1] + "." + parts[2]

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "u1",
		"exp": issuedAt.Add(time.Hour).Unix(),
	}).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
	}).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": issuedAt.Add(time.Hour).Unix(),
	}).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"empty":           "",
		"garbage":         "not-a-token",
		"foreign secret":  foreign,
		"tampered claims": tampered,
		"wrong algorithm": hs512,
		"missing expiry":  noExp,
		"missing subject": noSub,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Verify(raw)
			require.True(t, errors.Is(err, domain.ErrTokenInvalid), "got %v", err)
		})
	}
}

func TestCodec_SecretsAreIndependent(t *testing.T) {
	a := newTestCodec(t, "secret-a", issuedAt)
	b := newTestCodec(t, "secret-b", issuedAt)

	raw, err := a.Issue(domain.Identity{SubjectID: "u1"})
	require.NoError(t, err)

	_, err = a.Verify(raw)
	require.NoError(t, err)
	_, err = b.Verify(raw)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
)

const (
	testIssuer   = "https://auth.example.com"
	testAudience = "https://auth.example.com/mcp"
)

func newCodec(t *testing.T, alg string) *jwtx.Codec {
	t.Helper()
	km, err := jwtx.NewEphemeralKeyManager(alg)
	require.NoError(t, err)
	return jwtx.NewCodec(km, testIssuer)
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, alg := range []string{jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA} {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()
			codec := newCodec(t, alg)

			now := time.Now().Truncate(time.Second)
			in := jwtx.NewAccessClaims(testIssuer, testAudience, "user-1", "client-1",
				[]string{"openid", "meetings:read"}, now, jwtx.AccessTokenTTL)

			tok, err := codec.Sign(in)
			require.NoError(t, err)

			out, err := codec.Verify(tok, jwtx.Expectation{Type: jwtx.TypeAccess, Audience: testAudience})
			require.NoError(t, err)

			if diff := cmp.Diff(in, out, cmpopts.EquateApproxTime(time.Second)); diff != "" {
				t.Fatalf("claims mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCodec_IDTokenRoundTrip(t *testing.T) {
	codec := newCodec(t, jwtx.AlgorithmES256)
	now := time.Now()

	in := jwtx.NewIDClaims(testIssuer, "client-1", jwtx.Profile{
		Subject: "user-1", Email: "a@example.com", EmailVerified: true, Name: "Ada", Picture: "https://img/x.png",
	}, "nonce-1", now, jwtx.IDTokenTTL)

	tok, err := codec.Sign(in)
	require.NoError(t, err)

	out, err := codec.Verify(tok, jwtx.Expectation{Type: jwtx.TypeID, Audience: "client-1"})
	require.NoError(t, err)

	opts := cmpopts.IgnoreFields(jwt.RegisteredClaims{}, "IssuedAt", "NotBefore", "ExpiresAt")
	if diff := cmp.Diff(in, out, opts); diff != "" {
		t.Fatalf("claims mismatch (-want +got):\n%s", diff)
	}
}

func TestCodec_TypeMismatch(t *testing.T) {
	codec := newCodec(t, jwtx.AlgorithmES256)
	now := time.Now()

	access, err := codec.Sign(jwtx.NewAccessClaims(testIssuer, testAudience, "u", "c", nil, now, time.Hour))
	require.NoError(t, err)
	refresh, err := codec.Sign(jwtx.NewRefreshClaims(testIssuer, "u", "c", nil, now, time.Hour))
	require.NoError(t, err)

	_, err = codec.Verify(access, jwtx.Expectation{Type: jwtx.TypeRefresh})
	require.ErrorIs(t, err, jwtx.ErrTokenType)

	_, err = codec.Verify(refresh, jwtx.Expectation{Type: jwtx.TypeAccess})
	require.ErrorIs(t, err, jwtx.ErrTokenType)

	_, err = codec.Verify(refresh, jwtx.Expectation{Type: jwtx.TypeRefresh})
	require.NoError(t, err)
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	codec := newCodec(t, jwtx.AlgorithmES256)
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tok, err := codec.Sign(jwtx.NewAccessClaims(testIssuer, testAudience, "u", "c", nil, issued, 600*time.Second))
	require.NoError(t, err)

	at := func(d time.Duration) *jwtx.Codec {
		return codec.WithClock(func() time.Time { return issued.Add(d) })
	}

	_, err = at(599*time.Second).Verify(tok, jwtx.Expectation{Type: jwtx.TypeAccess})
	require.NoError(t, err)

	_, err = at(601*time.Second).Verify(tok, jwtx.Expectation{Type: jwtx.TypeAccess})
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestCodec_Rejections(t *testing.T) {
	codec := newCodec(t, jwtx.AlgorithmRS256)
	other := newCodec(t, jwtx.AlgorithmRS256)
	now := time.Now()

	good := jwtx.NewAccessClaims(testIssuer, testAudience, "u", "c", nil, now, time.Hour)
	tok, err := codec.Sign(good)
	require.NoError(t, err)

	foreign, err := other.Sign(good)
	require.NoError(t, err)

	wrongIssuer := good
	wrongIssuer.Issuer = "https://evil.example.com"
	wrongIssuerTok, err := codec.Sign(wrongIssuer)
	require.NoError(t, err)

	future := jwtx.NewAccessClaims(testIssuer, testAudience, "u", "c", nil, now.Add(time.Hour), time.Hour)
	futureTok, err := codec.Sign(future)
	require.NoError(t, err)

	noneTok, err := jwt.NewWithClaims(jwt.SigningMethodNone, good).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	tests := []struct {
		name  string
		token string
		want  jwtx.Expectation
		err   error
	}{
		{"garbage", "not-a-jwt", jwtx.Expectation{}, jwtx.ErrMalformed},
		{"unknown kid", foreign, jwtx.Expectation{}, jwtx.ErrUnknownKID},
		{"tampered signature", tampered, jwtx.Expectation{}, jwtx.ErrInvalidSig},
		{"alg none", noneTok, jwtx.Expectation{}, jwtx.ErrInvalidSig},
		{"wrong issuer", wrongIssuerTok, jwtx.Expectation{}, jwtx.ErrIssuer},
		{"wrong audience", tok, jwtx.Expectation{Audience: "other"}, jwtx.ErrAudience},
		{"not yet valid", futureTok, jwtx.Expectation{}, jwtx.ErrNotYetValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Verify(tt.token, tt.want)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

package session

import (
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProfile(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
		want    UserProfile
	}{
		{
			name: "complete",
			body: `{"id":7,"email":"ana@example.com","name":"Ana","profilePictureUrl":"https://x/a.png","provider":"google"}`,
			want: UserProfile{ID: 7, Email: "ana@example.com", DisplayName: "Ana", AvatarURL: "https://x/a.png", Provider: ProviderGoogle},
		},
		{
			name: "provider defaults to local",
			body: `{"id":7,"email":"ana@example.com","name":"Ana"}`,
			want: UserProfile{ID: 7, Email: "ana@example.com", DisplayName: "Ana", Provider: ProviderLocal},
		},
		{name: "missing email", body: `{"id":7,"name":"Ana"}`, wantErr: true},
		{name: "missing name", body: `{"id":7,"email":"ana@example.com"}`, wantErr: true},
		{name: "zero id", body: `{"id":0,"email":"ana@example.com","name":"Ana"}`, wantErr: true},
		{name: "bad email", body: `{"id":7,"email":"nope","name":"Ana"}`, wantErr: true},
		{name: "not json", body: `<html>`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeProfile([]byte(tc.body))
			if tc.wantErr {
				require.ErrorIs(t, err, ErrIncompleteProfile)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeAuthPayload(t *testing.T) {
	sess, err := DecodeAuthPayload([]byte(`{"id":2,"email":"b@example.com","name":"B","provider":"LOCAL","token":"tok"}`))
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.Token)
	assert.Equal(t, int64(2), sess.User.ID)
	assert.True(t, sess.Valid())

	_, err = DecodeAuthPayload([]byte(`{"id":2,"email":"b@example.com","name":"B"}`))
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = DecodeAuthPayload([]byte(`{"id":2,"name":"B","token":"tok"}`))
	require.ErrorIs(t, err, ErrIncompleteProfile)
}

func TestSessionCredentialsRoundTrip(t *testing.T) {
	sess := Session{Token: "tok", User: UserProfile{ID: 1, Email: "a@b.com", DisplayName: "A", Provider: ProviderLocal}}
	creds, err := sess.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "tok", creds.Token)

	user, err := DecodeProfile(creds.Profile)
	require.NoError(t, err)
	assert.Equal(t, sess.User, user)
}

func TestSessionValidNeedsToken(t *testing.T) {
	user := UserProfile{ID: 1, Email: "a@b.com", DisplayName: "A"}
	assert.False(t, Session{User: user}.Valid())
	assert.False(t, Session{Token: "tok"}.Valid())
	assert.True(t, Session{Token: "tok", User: user}.Valid())
}

func TestParseRedirect(t *testing.T) {
	cases := []struct {
		raw  string
		want Redirect
	}{
		{"http://localhost/", Redirect{Kind: RedirectNone}},
		{"http://localhost/?token=abc", Redirect{Kind: RedirectToken, Token: "abc"}},
		{"http://localhost/?token=abc&code=c&state=s", Redirect{Kind: RedirectToken, Token: "abc", State: "s"}},
		{"http://localhost/?code=c&state=s", Redirect{Kind: RedirectCode, Code: "c", State: "s"}},
		{"http://localhost/?code=c", Redirect{Kind: RedirectNone}},
		{"http://localhost/?state=s", Redirect{Kind: RedirectNone}},
		{"http://localhost/?token=", Redirect{Kind: RedirectNone}},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			u, err := url.Parse(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ParseRedirect(u))
		})
	}
	assert.Equal(t, RedirectNone, ParseRedirect(nil).Kind)
}

func TestStripQuery(t *testing.T) {
	loc, err := NewLocation("http://localhost:3000/trips/4?token=abc&tab=stats#top")
	require.NoError(t, err)
	stripQuery(loc)
	assert.Equal(t, "http://localhost:3000/trips/4#top", loc.String())

	stripQuery(nil)
}

func TestInspectToken(t *testing.T) {
	exp := time.Now().Add(-time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("any-key"))
	require.NoError(t, err)

	info := InspectToken(signed)
	assert.True(t, info.IsJWT)
	assert.Equal(t, "42", info.Subject)
	assert.True(t, info.ExpiresAt.Equal(exp))
	assert.True(t, info.Expired(time.Now()))

	opaque := InspectToken("abc123")
	assert.False(t, opaque.IsJWT)
	assert.False(t, opaque.Expired(time.Now()))
}

func TestOutcomeKinds(t *testing.T) {
	assert.False(t, Unauthenticated().IsAuthenticated())
	assert.False(t, Failed(ErrOAuthIncomplete).IsAuthenticated())
	assert.True(t, Authenticated(Session{Token: "t"}).IsAuthenticated())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "resolving_stored_token", StateResolvingStoredToken.String())
}

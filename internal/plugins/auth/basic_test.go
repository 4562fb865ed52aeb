package auth

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/gatekeeper/internal/plugins/users"
)

func TestExtractBase64Credentials(t *testing.T) {
	assert.Equal(t, "SG9sYmVydG9u", ExtractBase64Credentials("Basic SG9sYmVydG9u"))
	assert.Empty(t, ExtractBase64Credentials("Bearer SG9sYmVydG9u"))
	assert.Empty(t, ExtractBase64Credentials("BasicSG9sYmVydG9u"))
	assert.Empty(t, ExtractBase64Credentials(""))
}

func TestDecodeBase64Credentials(t *testing.T) {
	assert.Equal(t, "Holberton", DecodeBase64Credentials("SG9sYmVydG9u"))
	assert.Empty(t, DecodeBase64Credentials("not base64!"))
	assert.Empty(t, DecodeBase64Credentials(base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe})))
	assert.Empty(t, DecodeBase64Credentials(""))
}

func TestSplitCredentials(t *testing.T) {
	email, pw := SplitCredentials("bob@example.com:pa:ss")
	assert.Equal(t, "bob@example.com", email)
	assert.Equal(t, "pa:ss", pw)

	email, pw = SplitCredentials("no-colon")
	assert.Empty(t, email)
	assert.Empty(t, pw)
}

func basicHeader(email, pw string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+pw))
}

func TestBasicAuth_CurrentUser(t *testing.T) {
	bob := newStubUser(t, "bob@example.com", "H0lb:rton")
	a := NewBasicAuth(NewAuth("session_id"), &stubFinder{users: []*users.User{bob}})

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"valid", basicHeader("bob@example.com", "H0lb:rton"), true},
		{"wrong password", basicHeader("bob@example.com", "nope"), false},
		{"unknown email", basicHeader("eve@example.com", "H0lb:rton"), false},
		{"empty password", basicHeader("bob@example.com", ""), false},
		{"bad scheme", "Bearer token", false},
		{"bad base64", "Basic ###", false},
		{"no header", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			user := a.CurrentUser(r)
			if !tt.want {
				assert.Nil(t, user)
				return
			}
			require.NotNil(t, user)
			assert.Equal(t, bob.ID, user.ID)
		})
	}
}

func TestBasicAuth_StoreFaultIsAbsent(t *testing.T) {
	a := NewBasicAuth(NewAuth("session_id"), &stubFinder{err: errors.New("db down")})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", basicHeader("bob@example.com", "pw"))
	assert.Nil(t, a.CurrentUser(r))
}

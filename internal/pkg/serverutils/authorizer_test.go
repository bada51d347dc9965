package serverutils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestAuthorizer_Authorize(t *testing.T) {
	auth := NewAuthorizer(testSecret, "AdminUsers")
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name      string
		claims    jwt.MapClaims
		wantAdmin bool
		wantErr   bool
	}{
		{
			name:      "plain user",
			claims:    jwt.MapClaims{"user_id": "u-1", "exp": exp},
			wantAdmin: false,
		},
		{
			name:      "groups as array",
			claims:    jwt.MapClaims{"user_id": "u-1", "groups": []string{"Readers", "AdminUsers"}, "exp": exp},
			wantAdmin: true,
		},
		{
			name:      "groups as json string",
			claims:    jwt.MapClaims{"user_id": "u-1", "groups": `["AdminUsers"]`, "exp": exp},
			wantAdmin: true,
		},
		{
			name:      "groups as comma string",
			claims:    jwt.MapClaims{"user_id": "u-1", "groups": "Readers, AdminUsers", "exp": exp},
			wantAdmin: true,
		},
		{
			name:      "sub fallback",
			claims:    jwt.MapClaims{"sub": "u-2", "exp": exp},
			wantAdmin: false,
		},
		{
			name:    "missing user",
			claims:  jwt.MapClaims{"exp": exp},
			wantErr: true,
		},
		{
			name:    "expired",
			claims:  jwt.MapClaims{"user_id": "u-1", "exp": time.Now().Add(-time.Hour).Unix()},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := auth.Authorize(signToken(t, tt.claims))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdmin, p.IsAdmin)
			assert.NotEmpty(t, p.UserID)
		})
	}
}

func TestAuthorizer_RejectsWrongSecret(t *testing.T) {
	other := NewAuthorizer("another-secret", "AdminUsers")
	_, err := other.Authorize(signToken(t, jwt.MapClaims{"user_id": "u-1"}))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorizer_MissingToken(t *testing.T) {
	_, err := NewAuthorizer(testSecret, "AdminUsers").Authorize("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestAuthorizer_AdminFlagIsPerPrincipal(t *testing.T) {
	auth := NewAuthorizer(testSecret, "AdminUsers")

	admin, err := auth.Authorize(signToken(t, jwt.MapClaims{"user_id": "a", "groups": []string{"AdminUsers"}}))
	require.NoError(t, err)
	user, err := auth.Authorize(signToken(t, jwt.MapClaims{"user_id": "b"}))
	require.NoError(t, err)

	assert.True(t, admin.IsAdmin)
	assert.False(t, user.IsAdmin)
}

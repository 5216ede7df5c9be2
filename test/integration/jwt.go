package integration

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lunahq/posada/model"
)

// Token signing constants shared between the harness and its token helpers.
// The backend signs console tokens with an HMAC secret; tests use a fixed one.
const (
	testSecret = "integration-test-secret"
	testIssuer = "posada-backend-test"
)

// TestClaims holds the configurable claims for generating test tokens.
type TestClaims struct {
	SubjectID string
	Email     string
	Role      string
	Extra     map[string]any
}

// AdminClaims returns claims for an administrator user.
func AdminClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-admin",
		Email:     "admin@posada.example.com",
		Role:      model.RoleAdmin,
	}
}

// ClientClaims returns claims for a regular client user.
func ClientClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-client",
		Email:     "cliente@posada.example.com",
		Role:      model.RoleClient,
	}
}

// GenerateToken creates a valid, signed token with the given claims.
func GenerateToken(t *testing.T, claims TestClaims) string {
	t.Helper()
	return signTestToken(t, claims, time.Now().Add(time.Hour))
}

// GenerateExpiredToken creates a token that expired in the past.
func GenerateExpiredToken(t *testing.T, claims TestClaims) string {
	t.Helper()
	return signTestToken(t, claims, time.Now().Add(-time.Hour))
}

func signTestToken(t *testing.T, claims TestClaims, expires time.Time) string {
	t.Helper()

	mapClaims := jwt.MapClaims{
		"iss":    testIssuer,
		"iat":    jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		"exp":    jwt.NewNumericDate(expires),
		"sub":    claims.SubjectID,
		"correo": claims.Email,
		"rol":    claims.Role,
	}
	for k, v := range claims.Extra {
		mapClaims[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

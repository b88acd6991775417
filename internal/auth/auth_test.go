package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/school-support/internal/domain"
	"github.com/spec-kit/school-support/internal/repository"
	apperrors "github.com/spec-kit/school-support/pkg/util"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken("u1", domain.RoleLeader)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, domain.RoleLeader, claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpiredAndForeignAlgorithms(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(signed)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.ParseToken(unsigned)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "correct horse"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}

func newAuthApp(t *testing.T, users repository.UserRepository, tm *TokenManager, guards ...fiber.Handler) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		if fe, ok := err.(*fiber.Error); ok {
			return c.SendStatus(fe.Code)
		}
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	handlers := append([]fiber.Handler{NewAuthMiddleware(tm, users).Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.ErrTeapot
		}
		return c.SendString(p.Actor().UserID)
	})
	app.Get("/me", handlers...)
	return app
}

func bearer(t *testing.T, tm *TokenManager, user *domain.User) string {
	token, _, err := tm.GenerateToken(user.ID, user.Role)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	active := &domain.User{Username: "leader", Role: domain.RoleLeader, Active: true}
	inactive := &domain.User{Username: "gone", Role: domain.RoleStaff, Active: false}
	fresh := &domain.User{Username: "fresh", Role: domain.RoleStaff, Active: true, FirstLogin: true}
	for _, u := range []*domain.User{active, inactive, fresh} {
		require.NoError(t, store.Users().Create(ctx, u))
	}
	tm := NewTokenManager("secret", 5)

	cases := []struct {
		name   string
		header string
		guards []fiber.Handler
		want   int
	}{
		{name: "missing header", want: fiber.StatusUnauthorized},
		{name: "malformed header", header: "Token abc", want: fiber.StatusUnauthorized},
		{name: "active user", header: bearer(t, tm, active), want: fiber.StatusOK},
		{name: "inactive user", header: bearer(t, tm, inactive), want: fiber.StatusUnauthorized},
		{name: "role allowed", header: bearer(t, tm, active), guards: []fiber.Handler{RequireRole(domain.RoleLeader)}, want: fiber.StatusOK},
		{name: "role denied", header: bearer(t, tm, active), guards: []fiber.Handler{RequireRole(domain.RoleAdmin)}, want: fiber.StatusForbidden},
		{name: "changed password passes", header: bearer(t, tm, active), guards: []fiber.Handler{RequirePasswordChanged()}, want: fiber.StatusOK},
		{name: "first login blocked", header: bearer(t, tm, fresh), guards: []fiber.Handler{RequirePasswordChanged()}, want: fiber.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newAuthApp(t, store.Users(), tm, tc.guards...)
			req := httptest.NewRequest("GET", "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-planner/internal/middleware"
)

var (
	testSecret = []byte("middleware-secret")
	testConfig = middleware.AuthzConfig{Secret: testSecret, Issuer: "todo-planner"}
)

func createTestToken(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(userID string) jwt.MapClaims {
	return jwt.MapClaims{
		"user_id": userID,
		"iss":     "todo-planner",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
}

func newProtectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.AuthzMiddleware(testConfig))
	router.GET("/protected", func(c *gin.Context) {
		id, ok := middleware.UserID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.String())
	})
	return router
}

func request(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthzMiddleware_ValidToken(t *testing.T) {
	userID := uuid.Must(uuid.NewV4()).String()
	token := createTestToken(t, validClaims(userID), jwt.SigningMethodHS256, testSecret)

	w := request(newProtectedRouter(), "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, w.Body.String())
}

func TestAuthzMiddleware_Rejections(t *testing.T) {
	userID := uuid.Must(uuid.NewV4()).String()

	expired := validClaims(userID)
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	wrongIssuer := validClaims(userID)
	wrongIssuer["iss"] = "someone-else"

	noExpiry := validClaims(userID)
	delete(noExpiry, "exp")

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "missing_token"},
		{"not bearer", "Token abc", "invalid_token_format"},
		{"garbage", "Bearer invalid_token", "invalid_token"},
		{"wrong secret", "Bearer " + createTestToken(t, validClaims(userID), jwt.SigningMethodHS256, []byte("other")), "invalid_token"},
		{"expired", "Bearer " + createTestToken(t, expired, jwt.SigningMethodHS256, testSecret), "expired_token"},
		{"wrong issuer", "Bearer " + createTestToken(t, wrongIssuer, jwt.SigningMethodHS256, testSecret), "invalid_issuer"},
		{"no expiry", "Bearer " + createTestToken(t, noExpiry, jwt.SigningMethodHS256, testSecret), "invalid_token"},
		{"bad user id", "Bearer " + createTestToken(t, validClaims("test-user-123"), jwt.SigningMethodHS256, testSecret), "invalid_claims"},
		{"none alg", "Bearer " + createTestToken(t, validClaims(userID), jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType), "invalid_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := request(newProtectedRouter(), tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"error":"`+tc.code+`"`)
		})
	}
}

package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"todo-planner/internal/handlers"
	"todo-planner/internal/models"
	"todo-planner/internal/services"
)

type MockAuthService struct {
	user       *models.User
	loginErr   error
	refreshErr error
	revokeErr  error
	revoked    []string
}

func (m *MockAuthService) LoginUser(_ context.Context, email, password string) (*models.User, error) {
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return m.user, nil
}

func (m *MockAuthService) GenerateToken(_ context.Context, userID uuid.UUID) (*services.TokenPair, error) {
	return &services.TokenPair{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", ExpiresIn: 900}, nil
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return m.GenerateToken(ctx, m.user.ID)
}

func (m *MockAuthService) RevokeToken(_ context.Context, refreshToken string) error {
	m.revoked = append(m.revoked, refreshToken)
	return m.revokeErr
}

type MockRegisterService struct {
	mock.Mock
}

func (m *MockRegisterService) RegisterUser(ctx context.Context, req services.RegistrationRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

type MockUserService struct {
	user *models.User
}

func (m *MockUserService) GetUserProfile(_ context.Context, userID uuid.UUID) (*models.User, error) {
	if m.user == nil || m.user.ID != userID {
		return nil, services.ErrUserNotFound
	}
	return m.user, nil
}

func setupAuthRouter(auth *MockAuthService, reg *MockRegisterService, users *MockUserService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/token", handlers.NewAuthHandler(auth, zerolog.Nop()).Token)
	router.POST("/auth/register", handlers.NewRegisterHandler(reg, zerolog.Nop()).Registration)
	router.POST("/auth/refresh", handlers.NewRefreshHandler(auth, zerolog.Nop()).Refresh)
	router.POST("/auth/logout", handlers.NewLogoutHandler(auth, zerolog.Nop()).Logout)
	router.GET("/users/me", func(c *gin.Context) {
		c.Set("user_id", testUser.String())
	}, handlers.NewUserHandler(users, zerolog.Nop()).GetUserProfile)
	return router
}

func TestToken(t *testing.T) {
	auth := &MockAuthService{user: &models.User{ID: testUser, Name: "Ada", Email: "ada@example.com"}}
	router := setupAuthRouter(auth, &MockRegisterService{}, &MockUserService{})

	w := doJSON(router, http.MethodPost, "/auth/token", gin.H{"email": "ada@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "access", resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "Ada", resp.User.Name)

	auth.loginErr = services.ErrInvalidCredentials
	w = doJSON(router, http.MethodPost, "/auth/token", gin.H{"email": "ada@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	auth.loginErr = errors.New("db down")
	w = doJSON(router, http.MethodPost, "/auth/token", gin.H{"email": "ada@example.com", "password": "nope"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/token", gin.H{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistration(t *testing.T) {
	body := gin.H{"name": "Ada", "email": "ada@example.com", "password": "secret", "confirm_password": "secret"}
	req := services.RegistrationRequest{Name: "Ada", Email: "ada@example.com", Password: "secret", ConfirmPassword: "secret"}

	cases := []struct {
		name   string
		user   *models.User
		err    error
		status int
	}{
		{"created", &models.User{ID: uuid.Must(uuid.NewV4()), Name: "Ada", Email: "ada@example.com", CreatedAt: time.Now()}, nil, http.StatusCreated},
		{"duplicate", nil, services.ErrDuplicateEmail, http.StatusConflict},
		{"mismatch", nil, services.ErrPasswordMismatch, http.StatusBadRequest},
		{"storage", nil, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := &MockRegisterService{}
			reg.On("RegisterUser", mock.Anything, req).Return(tc.user, tc.err).Once()
			router := setupAuthRouter(&MockAuthService{}, reg, &MockUserService{})

			w := doJSON(router, http.MethodPost, "/auth/register", body)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusCreated {
				assert.Contains(t, w.Body.String(), "Account created successfully! You can now login.")
			}
			reg.AssertExpectations(t)
		})
	}
}

func TestRegistration_BindingRejectsShortPassword(t *testing.T) {
	reg := &MockRegisterService{}
	router := setupAuthRouter(&MockAuthService{}, reg, &MockUserService{})

	short := gin.H{"name": "Ada", "email": "ada@example.com", "password": "123", "confirm_password": "123"}
	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodPost, "/auth/register", short).Code)
	reg.AssertNotCalled(t, "RegisterUser", mock.Anything, mock.Anything)
}

func TestRefresh(t *testing.T) {
	auth := &MockAuthService{user: &models.User{ID: testUser}}
	router := setupAuthRouter(auth, &MockRegisterService{}, &MockUserService{})

	w := doJSON(router, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": "old"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"refresh_token":"refresh"`)

	auth.refreshErr = services.ErrInvalidRefreshToken
	w = doJSON(router, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": "old"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	auth := &MockAuthService{revokeErr: services.ErrInvalidRefreshToken}
	router := setupAuthRouter(auth, &MockRegisterService{}, &MockUserService{})

	w := doJSON(router, http.MethodPost, "/auth/logout", gin.H{"refresh_token": "gone"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Successfully logged out"}`, w.Body.String())
	assert.Equal(t, []string{"gone"}, auth.revoked)
}

func TestGetUserProfile(t *testing.T) {
	users := &MockUserService{user: &models.User{ID: testUser, Name: "Ada", Email: "ada@example.com"}}
	router := setupAuthRouter(&MockAuthService{}, &MockRegisterService{}, users)

	w := doJSON(router, http.MethodGet, "/users/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"ada@example.com"`)

	users.user = nil
	assert.Equal(t, http.StatusNotFound, doJSON(router, http.MethodGet, "/users/me", nil).Code)
}

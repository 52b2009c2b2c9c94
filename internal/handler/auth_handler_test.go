package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-swap-api/internal/models"
	appErrors "github.com/noah-isme/course-swap-api/pkg/errors"
)

type fakeAuthSrv struct {
	last models.LoginRequest
	err  error
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.LoginResponse{AccessToken: "token", ExpiresIn: 3600, User: models.UserInfo{ID: "u1", Email: req.Email, Role: models.RoleStudent}}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	srv := &fakeAuthSrv{}
	c, rec := newContext(http.MethodPost, "/auth/login", models.LoginRequest{Email: "student@example.com", Password: "student123"}, nil)
	c.Request.Header.Set("User-Agent", "swap-test")
	NewAuthHandler(srv).Login(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "swap-test", srv.last.UserAgent)
	assert.NotEmpty(t, srv.last.IP)

	var body models.LoginResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.Equal(t, "token", body.AccessToken)
}

func TestAuthHandlerLoginErrors(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/auth/login", "[]", nil)
	NewAuthHandler(&fakeAuthSrv{}).Login(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(http.MethodPost, "/auth/login", models.LoginRequest{Email: "x@example.com", Password: "bad"}, nil)
	NewAuthHandler(&fakeAuthSrv{err: appErrors.ErrInvalidCredentials}).Login(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, rec).Error.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/auth/me", nil, adminClaims)
	NewAuthHandler(&fakeAuthSrv{}).Me(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var info models.UserInfo
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &info))
	assert.Equal(t, "admin-1", info.ID)
	assert.Equal(t, models.RoleAdmin, info.Role)

	c, rec = newContext(http.MethodGet, "/auth/me", nil, nil)
	NewAuthHandler(&fakeAuthSrv{}).Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

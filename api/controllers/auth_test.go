package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sponzahq/sponza-backend/internal/auth"
	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/logger"
)

type testAuthService struct {
	registerFn func(ctx context.Context, input auth.RegisterInput) (*auth.AuthResult, error)
	loginFn    func(ctx context.Context, input auth.LoginInput) (*auth.AuthResult, error)
}

func (s *testAuthService) Register(ctx context.Context, input auth.RegisterInput) (*auth.AuthResult, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, input)
	}
	return nil, nil
}

func (s *testAuthService) Login(ctx context.Context, input auth.LoginInput) (*auth.AuthResult, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, input)
	}
	return nil, nil
}

func (s *testAuthService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestAuthRegisterSuccess(t *testing.T) {
	var got auth.RegisterInput
	svc := &testAuthService{
		registerFn: func(ctx context.Context, input auth.RegisterInput) (*auth.AuthResult, error) {
			got = input
			return &auth.AuthResult{
				User:      &models.User{ID: uuid.New(), Email: input.Email, Role: input.Role},
				Token:     "token",
				ExpiresAt: time.Now().Add(time.Hour),
			}, nil
		},
	}

	body := `{"email":"brand@example.com","password":"hunter2hunter2","name":"Acme","role":"brand"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	resp := httptest.NewRecorder()

	AuthRegister(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if got.Role != enums.UserRoleBrand {
		t.Fatalf("Role = %s, want brand", got.Role)
	}
}

func TestAuthRegisterRejectsAdminRole(t *testing.T) {
	svc := &testAuthService{}

	body := `{"email":"a@example.com","password":"hunter2hunter2","name":"A","role":"admin"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	resp := httptest.NewRecorder()

	AuthRegister(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAuthLoginMapsServiceError(t *testing.T) {
	svc := &testAuthService{
		loginFn: func(ctx context.Context, input auth.LoginInput) (*auth.AuthResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		},
	}

	body := `{"email":"a@example.com","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	resp := httptest.NewRecorder()

	AuthLogin(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeUnauthorized) {
		t.Fatalf("error code = %s, want UNAUTHORIZED", envelope.Error.Code)
	}
}

func TestAuthLoginRejectsUnknownFields(t *testing.T) {
	svc := &testAuthService{}

	body := `{"email":"a@example.com","password":"x","extra":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	resp := httptest.NewRecorder()

	AuthLogin(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

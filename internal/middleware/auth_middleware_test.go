package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ispcare/backend/internal/domain"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func TestAuthMiddleware(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Role: domain.RoleCustomer, IsActive: true}

	tests := []struct {
		name       string
		setupReq   func(r *http.Request)
		setupMock  func(m *MockAuthenticator)
		wantStatus int
	}{
		{
			name:       "missing token",
			setupReq:   func(r *http.Request) {},
			setupMock:  func(m *MockAuthenticator) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			setupReq:   func(r *http.Request) { r.Header.Set("Authorization", "Token abc") },
			setupMock:  func(m *MockAuthenticator) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:     "bearer token",
			setupReq: func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") },
			setupMock: func(m *MockAuthenticator) {
				m.On("Authenticate", mock.Anything, "good").Return(user, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "query token",
			setupReq: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("token", "good")
				r.URL.RawQuery = q.Encode()
			},
			setupMock: func(m *MockAuthenticator) {
				m.On("Authenticate", mock.Anything, "good").Return(user, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:     "expired session",
			setupReq: func(r *http.Request) { r.Header.Set("Authorization", "Bearer old") },
			setupMock: func(m *MockAuthenticator) {
				m.On("Authenticate", mock.Anything, "old").Return(nil, domain.ErrSessionExpired)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:     "disabled account",
			setupReq: func(r *http.Request) { r.Header.Set("Authorization", "Bearer off") },
			setupMock: func(m *MockAuthenticator) {
				m.On("Authenticate", mock.Anything, "off").Return(nil, domain.ErrAccountDisabled)
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:     "store failure",
			setupReq: func(r *http.Request) { r.Header.Set("Authorization", "Bearer x") },
			setupMock: func(m *MockAuthenticator) {
				m.On("Authenticate", mock.Anything, "x").Return(nil, errors.New("redis down"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authenticator := &MockAuthenticator{}
			tt.setupMock(authenticator)

			var gotID uuid.UUID
			var gotToken string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = GetUserID(r.Context())
				gotToken, _ = GetToken(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			tt.setupReq(req)
			rec := httptest.NewRecorder()

			AuthMiddleware(authenticator)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, user.ID, gotID)
				assert.Equal(t, "good", gotToken)
			}
			authenticator.AssertExpectations(t)
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireRole(domain.RoleAdmin)(next)

	tests := []struct {
		name       string
		ctx        context.Context
		wantStatus int
	}{
		{name: "no role", ctx: context.Background(), wantStatus: http.StatusForbidden},
		{name: "customer", ctx: context.WithValue(context.Background(), RoleKey, domain.RoleCustomer), wantStatus: http.StatusForbidden},
		{name: "admin", ctx: context.WithValue(context.Background(), RoleKey, domain.RoleAdmin), wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/alerts", nil).WithContext(tt.ctx)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

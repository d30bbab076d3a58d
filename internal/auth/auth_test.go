package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/inamate/bubblesets/internal/store"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]store.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]store.User)}
}

func (m *memUsers) CreateUser(_ context.Context, u store.User) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.users {
		if o.Email == u.Email {
			return store.User{}, store.ErrDuplicate
		}
	}
	u.CreatedAt = time.Now()
	m.users[u.ID] = u
	return u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func newTestService() *Service {
	s := NewService(newMemUsers(), "test-secret")
	s.bcryptCost = bcrypt.MinCost
	return s
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	reg, err := s.Register(ctx, "ada@example.com", "correct horse", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Ada", reg.User.DisplayName)

	userID, err := s.ValidateToken(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, userID)

	_, err = s.Register(ctx, "ada@example.com", "another one", "Ada 2")
	assert.True(t, errors.Is(err, ErrEmailTaken))

	login, err := s.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, reg.User, login.User)

	_, err = s.Login(ctx, "ada@example.com", "wrong password")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = s.Login(ctx, "nobody@example.com", "whatever1")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestValidateTokenRejects(t *testing.T) {
	s := newTestService()
	other := NewService(newMemUsers(), "other-secret")

	token, err := other.issueToken("user_x")
	require.NoError(t, err)
	_, err = s.ValidateToken(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	s.tokenTTL = -time.Minute
	expired, err := s.issueToken("user_x")
	require.NoError(t, err)
	_, err = s.ValidateToken(expired)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = s.ValidateToken("garbage")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestRegisterHandler(t *testing.T) {
	h := NewHandler(newTestService())

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"created", `{"email":"a@example.com","password":"longenough","displayName":"A"}`, http.StatusCreated},
		{"duplicate", `{"email":"a@example.com","password":"longenough","displayName":"A"}`, http.StatusConflict},
		{"short password", `{"email":"b@example.com","password":"short","displayName":"B"}`, http.StatusBadRequest},
		{"bad email", `{"email":"nope","password":"longenough","displayName":"B"}`, http.StatusBadRequest},
		{"missing name", `{"email":"b@example.com","password":"longenough"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestMiddlewareAndMe(t *testing.T) {
	s := newTestService()
	h := NewHandler(s)
	reg, err := s.Register(context.Background(), "me@example.com", "longenough", "Me")
	require.NoError(t, err)

	protected := s.AuthMiddleware(http.HandlerFunc(h.Me))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Token "+reg.Token)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+reg.Token)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var me User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, reg.User, me)

	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+reg.Token, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

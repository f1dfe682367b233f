package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/branchcast/internal/db"
	"github.com/Nixie-Tech-LLC/branchcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
)

const testSecret = "test-secret"

type memUsers struct {
	mu    sync.Mutex
	users map[int]*model.User
}

func (m *memUsers) CreateUser(_ context.Context, email, hashed string, name *string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return 0, &db.DuplicateError{Constraint: "users_email_key"}
		}
	}
	id := len(m.users) + 1
	m.users[id] = &model.User{ID: id, Email: email, HashedPassword: hashed, Name: name}
	return id, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memUsers) GetUserByID(_ context.Context, id int) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, db.ErrNotFound
}

func (m *memUsers) UpdateUserProfile(_ context.Context, id int, email string, name *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.ErrNotFound
	}
	u.Email, u.Name = email, name
	return nil
}

func newRouter(store *memUsers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api.MountGroup(r, api.GroupConfig{Prefix: "/api/admin"}, AuthPublicModule(testSecret, store))
	api.MountGroup(r, api.GroupConfig{Prefix: "/api/admin", Auth: true, SecretKey: testSecret, Users: store},
		AuthSessionModule(testSecret, store))
	return r
}

func do(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSignupLoginProfile(t *testing.T) {
	store := &memUsers{users: map[int]*model.User{}}
	r := newRouter(store)

	w := do(r, http.MethodPost, "/api/admin/auth/signup", "", gin.H{"email": "admin@example.com", "password": "testpassword"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/api/admin/auth/signup", "", gin.H{"email": "admin@example.com", "password": "testpassword"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/admin/auth/login", "", gin.H{"email": "admin@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/admin/auth/login", "", gin.H{"email": "admin@example.com", "password": "testpassword"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	w = do(r, http.MethodGet, "/api/admin/auth/current_profile", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"admin@example.com"`)

	w = do(r, http.MethodPut, "/api/admin/auth/current_profile", resp.Token, gin.H{"email": "ops@example.com", "name": "Ops"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Ops"`)

	w = do(r, http.MethodGet, "/api/admin/auth/current_profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignupValidation(t *testing.T) {
	r := newRouter(&memUsers{users: map[int]*model.User{}})

	w := do(r, http.MethodPost, "/api/admin/auth/signup", "", gin.H{"email": "not-an-email", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

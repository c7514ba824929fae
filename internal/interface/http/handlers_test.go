package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	userapp "github.com/rizkypriyo/go-accounts-api/internal/application"
	"github.com/rizkypriyo/go-accounts-api/internal/domain/entity"
	"github.com/rizkypriyo/go-accounts-api/internal/domain/repository"
	handlers "github.com/rizkypriyo/go-accounts-api/internal/interface/http"
	"github.com/rizkypriyo/go-accounts-api/internal/interface/middleware"
	"github.com/rizkypriyo/go-accounts-api/pkg/helpers"
	"github.com/rizkypriyo/go-accounts-api/pkg/mailer"
	"github.com/rizkypriyo/go-accounts-api/pkg/validation"
)

type memRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func (r *memRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.users {
		if e.Username == u.Username || e.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.ID = uuid.NewString()
	u.IsActive = false
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.FirstName = u.FirstName
	cur.LastName = u.LastName
	return nil
}

func (r *memRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *memRepo) SetActive(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = true
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memRepo) List(_ context.Context, limit, offset int) ([]*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

type memBlacklist struct {
	mu   sync.Mutex
	jtis map[string]bool
}

func (b *memBlacklist) Add(_ context.Context, jti string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jtis[jti] = true
	return nil
}

func (b *memBlacklist) Contains(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jtis[jti], nil
}

type memPublisher struct {
	mu   sync.Mutex
	jobs []mailer.EmailJob
}

func (p *memPublisher) PublishJSON(_ context.Context, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, body.(mailer.EmailJob))
	return nil
}

type testAPI struct {
	engine *gin.Engine
	pub    *memPublisher
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	repo := &memRepo{users: make(map[string]*entity.User)}
	pub := &memPublisher{}
	jwt := helpers.NewJWTManager("test-access", "test-refresh", 5*time.Minute, 24*time.Hour)
	svc := userapp.NewService(repo, jwt,
		helpers.NewActivationCodec("test-secret", 72*time.Hour),
		helpers.NewActivationCodec("test-secret", 30*time.Minute),
		&memBlacklist{jtis: make(map[string]bool)}, pub, nil, nil, "",
		userapp.Links{
			ActivationURL:    "http://app.local/activate",
			ResetPasswordURL: "http://app.local/reset-password",
		}, true)

	userH := handlers.NewUserHandler(svc, nil, nil)
	tokenH := handlers.NewTokenHandler(svc, nil, nil)
	authH := handlers.NewAuthHandler(svc, nil, nil)

	engine := gin.New()
	rg := engine.Group("/api/v1")

	rg.POST("/auth/users/", userH.Register)
	rg.POST("/auth/jwt/create/", tokenH.Create)
	rg.POST("/auth/jwt/refresh/", tokenH.Refresh)
	rg.POST("/auth/token/blacklist/", tokenH.Blacklist)
	rg.POST("/auth/users/activation/", authH.Activation)
	rg.POST("/auth/users/resend_activation/", authH.ResendActivation)
	rg.POST("/auth/users/reset_password/", authH.ResetPassword)
	rg.POST("/auth/users/reset_password_confirm/", authH.ResetPasswordConfirm)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(jwt))
	auth.GET("/auth/users/me/", userH.Me)
	auth.PUT("/auth/users/me/", userH.UpdateMe)
	auth.POST("/auth/users/set_password/", userH.SetPassword)
	auth.GET("/auth/users/", userH.List)
	auth.GET("/auth/users/:id/", userH.Detail)
	auth.DELETE("/auth/users/:id/", userH.Delete)

	return &testAPI{engine: engine, pub: pub}
}

func (a *testAPI) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (a *testAPI) lastLink(t *testing.T) (uid, token string) {
	t.Helper()
	a.pub.mu.Lock()
	require.NotEmpty(t, a.pub.jobs)
	job := a.pub.jobs[len(a.pub.jobs)-1]
	a.pub.mu.Unlock()
	link, ok := job.Data["Link"].(string)
	require.True(t, ok)
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("uid"), u.Query().Get("token")
}

func (a *testAPI) jobCount() int {
	a.pub.mu.Lock()
	defer a.pub.mu.Unlock()
	return len(a.pub.jobs)
}

func (a *testAPI) register(t *testing.T, username, email, password string) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/auth/users/", "", gin.H{
		"username":    username,
		"email":       email,
		"password":    password,
		"re_password": password,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (a *testAPI) registerAndActivate(t *testing.T, username, email, password string) {
	t.Helper()
	a.register(t, username, email, password)
	uid, token := a.lastLink(t)
	w := a.do(t, http.MethodPost, "/api/v1/auth/users/activation/", "", gin.H{"uid": uid, "token": token})
	require.Equal(t, http.StatusNoContent, w.Code)
}

func (a *testAPI) login(t *testing.T, username, password string) (access, refresh string) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/auth/jwt/create/", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	return data["access"].(string), data["refresh"].(string)
}

func TestRegisterEndpoint(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/auth/users/", "", gin.H{
		"username":    "alice",
		"email":       "alice@x.com",
		"password":    "pw123secret",
		"re_password": "pw123secret",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "alice", data["username"])
	assert.Equal(t, false, data["is_active"])
	assert.NotContains(t, data, "password")
	assert.NotContains(t, data, "password_hash")

	t.Run("duplicate username", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/auth/users/", "", gin.H{
			"username":    "alice",
			"email":       "other@x.com",
			"password":    "pw123secret",
			"re_password": "pw123secret",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("password mismatch", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/auth/users/", "", gin.H{
			"username":    "bob",
			"email":       "bob@x.com",
			"password":    "pw123secret",
			"re_password": "different123",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		errs := decode(t, w)["error"].(map[string]any)
		assert.Contains(t, errs, "re_password")
	})

	t.Run("short password", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/auth/users/", "", gin.H{
			"username":    "bob",
			"email":       "bob@x.com",
			"password":    "short",
			"re_password": "short",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		errs := decode(t, w)["error"].(map[string]any)
		assert.Contains(t, errs, "password")
	})

	t.Run("bad email", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/auth/users/", "", gin.H{
			"username":    "bob",
			"email":       "not-an-email",
			"password":    "pw123secret",
			"re_password": "pw123secret",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTokenCreateEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@x.com", "pw123secret")

	const genericMsg = "no active account found with the given credentials"

	t.Run("inactive account and wrong password look identical", func(t *testing.T) {
		w1 := api.do(t, http.MethodPost, "/api/v1/auth/jwt/create/", "", gin.H{"username": "alice", "password": "pw123secret"})
		require.Equal(t, http.StatusUnauthorized, w1.Code)
		assert.Equal(t, genericMsg, decode(t, w1)["message"])

		w2 := api.do(t, http.MethodPost, "/api/v1/auth/jwt/create/", "", gin.H{"username": "alice", "password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, w2.Code)
		assert.Equal(t, genericMsg, decode(t, w2)["message"])

		w3 := api.do(t, http.MethodPost, "/api/v1/auth/jwt/create/", "", gin.H{"username": "ghost", "password": "whatever"})
		require.Equal(t, http.StatusUnauthorized, w3.Code)
		assert.Equal(t, genericMsg, decode(t, w3)["message"])
	})

	t.Run("missing fields", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/auth/jwt/create/", "", gin.H{"username": "alice"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("activated account gets a pair", func(t *testing.T) {
		uid, token := api.lastLink(t)
		w := api.do(t, http.MethodPost, "/api/v1/auth/users/activation/", "", gin.H{"uid": uid, "token": token})
		require.Equal(t, http.StatusNoContent, w.Code)

		access, refresh := api.login(t, "alice", "pw123secret")
		assert.NotEmpty(t, access)
		assert.NotEmpty(t, refresh)
		assert.NotEqual(t, access, refresh)
	})
}

func TestProtectedRoutes(t *testing.T) {
	api := newTestAPI(t)
	api.registerAndActivate(t, "alice", "alice@x.com", "pw123secret")
	access, refresh := api.login(t, "alice", "pw123secret")

	t.Run("missing token", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/auth/users/me/", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/auth/users/me/", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/auth/users/me/", refresh, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("me", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/auth/users/me/", access, nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]any)
		assert.Equal(t, "alice", data["username"])
		assert.Equal(t, true, data["is_active"])
	})

	t.Run("update me", func(t *testing.T) {
		w := api.do(t, http.MethodPut, "/api/v1/auth/users/me/", access, gin.H{"first_name": "Alice"})
		require.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]any)
		assert.Equal(t, "Alice", data["first_name"])
	})

	t.Run("list and detail", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/auth/users/", access, nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode(t, w)["data"].([]any)
		require.Len(t, list, 1)
		id := list[0].(map[string]any)["id"].(string)

		w = api.do(t, http.MethodGet, "/api/v1/auth/users/"+id+"/", access, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = api.do(t, http.MethodGet, "/api/v1/auth/users/"+uuid.NewString()+"/", access, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRefreshAndBlacklistEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.registerAndActivate(t, "alice", "alice@x.com", "pw123secret")
	_, refresh := api.login(t, "alice", "pw123secret")

	w := api.do(t, http.MethodPost, "/api/v1/auth/jwt/refresh/", "", gin.H{"refresh": refresh})
	require.Equal(t, http.StatusOK, w.Code)
	access := decode(t, w)["data"].(map[string]any)["access"].(string)
	require.NotEmpty(t, access)

	// The fresh access token works against a protected route
	w = api.do(t, http.MethodGet, "/api/v1/auth/users/me/", access, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	t.Run("garbage refresh token", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/auth/jwt/refresh/", "", gin.H{"refresh": "garbage"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "token is invalid or expired", decode(t, w)["message"])
	})

	// Logout, then the refresh token is dead
	w = api.do(t, http.MethodPost, "/api/v1/auth/token/blacklist/", "", gin.H{"refresh": refresh})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["data"].(map[string]any)["blacklisted"])

	w = api.do(t, http.MethodPost, "/api/v1/auth/jwt/refresh/", "", gin.H{"refresh": refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Repeat logout still succeeds
	w = api.do(t, http.MethodPost, "/api/v1/auth/token/blacklist/", "", gin.H{"refresh": refresh})
	assert.Equal(t, http.StatusOK, w.Code)

	// Already-issued access tokens are stateless and stay valid
	w = api.do(t, http.MethodGet, "/api/v1/auth/users/me/", access, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestActivationEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@x.com", "pw123secret")
	uid, token := api.lastLink(t)

	t.Run("bad token", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/auth/users/activation/", "", gin.H{"uid": uid, "token": "bad"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w := api.do(t, http.MethodPost, "/api/v1/auth/users/activation/", "", gin.H{"uid": uid, "token": token})
	require.Equal(t, http.StatusNoContent, w.Code)

	t.Run("consumed link", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/auth/users/activation/", "", gin.H{"uid": uid, "token": token})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("resend is always 204", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/auth/users/resend_activation/", "", gin.H{"email": "alice@x.com"})
		assert.Equal(t, http.StatusNoContent, w.Code)
		w = api.do(t, http.MethodPost, "/api/v1/auth/users/resend_activation/", "", gin.H{"email": "ghost@x.com"})
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestPasswordResetEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.registerAndActivate(t, "alice", "alice@x.com", "pw123secret")
	base := api.jobCount()

	t.Run("unknown email is still 204 and sends nothing", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/auth/users/reset_password/", "", gin.H{"email": "ghost@x.com"})
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, base, api.jobCount())
	})

	w := api.do(t, http.MethodPost, "/api/v1/auth/users/reset_password/", "", gin.H{"email": "alice@x.com"})
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, base+1, api.jobCount())

	uid, token := api.lastLink(t)
	w = api.do(t, http.MethodPost, "/api/v1/auth/users/reset_password_confirm/", "", gin.H{
		"uid":             uid,
		"token":           token,
		"new_password":    "newpassword1",
		"re_new_password": "newpassword1",
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	// Old credentials dead, new ones live
	w = api.do(t, http.MethodPost, "/api/v1/auth/jwt/create/", "", gin.H{"username": "alice", "password": "pw123secret"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	api.login(t, "alice", "newpassword1")

	t.Run("token is single use", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/auth/users/reset_password_confirm/", "", gin.H{
			"uid":             uid,
			"token":           token,
			"new_password":    "another1234",
			"re_new_password": "another1234",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSetPasswordEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.registerAndActivate(t, "alice", "alice@x.com", "pw123secret")
	access, _ := api.login(t, "alice", "pw123secret")

	t.Run("wrong current password", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/auth/users/set_password/", access, gin.H{
			"current_password": "wrong",
			"new_password":     "newpassword1",
			"re_new_password":  "newpassword1",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w := api.do(t, http.MethodPost, "/api/v1/auth/users/set_password/", access, gin.H{
		"current_password": "pw123secret",
		"new_password":     "newpassword1",
		"re_new_password":  "newpassword1",
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	api.login(t, "alice", "newpassword1")
}

func TestDeleteUserEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.registerAndActivate(t, "alice", "alice@x.com", "pw123secret")
	api.registerAndActivate(t, "bob", "bob@x.com", "pw123secret")
	access, _ := api.login(t, "alice", "pw123secret")

	w := api.do(t, http.MethodGet, "/api/v1/auth/users/", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["data"].([]any)
	require.Len(t, list, 2)

	var bobID string
	for _, it := range list {
		m := it.(map[string]any)
		if m["username"] == "bob" {
			bobID = m["id"].(string)
		}
	}
	require.NotEmpty(t, bobID)

	w = api.do(t, http.MethodDelete, "/api/v1/auth/users/"+bobID+"/", access, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodDelete, "/api/v1/auth/users/"+bobID+"/", access, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/auth/jwt/create/", "", gin.H{"username": "bob", "password": "pw123secret"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

package authclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAPI is an in-memory stand-in for the auth server. It knows one user
// (a@b.com / correct) and exactly one live token pair at a time.
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.Mutex
	seq         int
	access      string
	refresh     string
	refreshWait time.Duration
	refreshFail bool
	logoutFail  bool
	// alwaysUnauthorized makes /protected answer 401 whatever the token.
	alwaysUnauthorized bool

	refreshCalls   atomic.Int32
	protectedCalls atomic.Int32
	requests       atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", f.login)
	mux.HandleFunc("POST /auth/register", f.register)
	mux.HandleFunc("POST /auth/refresh", f.refreshHandler)
	mux.HandleFunc("POST /auth/logout", f.logout)
	mux.HandleFunc("GET /auth/me", f.me)
	mux.HandleFunc("POST /auth/change-password", f.changePassword)
	mux.HandleFunc("GET /protected", f.protected)
	mux.HandleFunc("GET /admin-only", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: CodeForbidden, Message: "requires one of roles: admin"})
	})

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) URL() string { return f.server.URL }

// issue rotates the live pair and returns it.
func (f *fakeAPI) issue() TokenPair {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.access = fmt.Sprintf("access-%d", f.seq)
	f.refresh = fmt.Sprintf("refresh-%d", f.seq)
	return TokenPair{AccessToken: f.access, RefreshToken: f.refresh}
}

// expireAccess invalidates the live access token but keeps the refresh token.
func (f *fakeAPI) expireAccess() {
	f.mu.Lock()
	f.access = "expired"
	f.mu.Unlock()
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

func (f *fakeAPI) user() *User {
	return &User{ID: "u1", Name: "Ada", Email: "a@b.com", Role: RoleStudent, IsActive: true}
}

func (f *fakeAPI) authorized(r *http.Request) (bool, string) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return false, CodeNoToken
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alwaysUnauthorized || token != f.access {
		return false, CodeTokenExpired
	}
	return true, ""
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Email != "a@b.com" || req.Password != "correct" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: CodeInvalidCredentials, Message: "invalid email or password"})
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: f.user(), TokenPair: f.issue()})
}

func (f *fakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Email == "a@b.com" {
		writeJSON(w, http.StatusConflict, errorResponse{Error: CodeUserExists, Message: "a user with this email already exists"})
		return
	}
	u := &User{ID: "u2", Name: req.Name, Email: req.Email, Role: RoleStudent, IsActive: true}
	if req.Role != "" {
		u.Role = req.Role
	}
	writeJSON(w, http.StatusCreated, authResponse{User: u, TokenPair: f.issue()})
}

func (f *fakeAPI) refreshHandler(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)

	f.mu.Lock()
	wait, fail, live := f.refreshWait, f.refreshFail, f.refresh
	f.mu.Unlock()
	time.Sleep(wait)

	var req refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if fail || req.RefreshToken == "" || req.RefreshToken != live {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: CodeTokenInvalid, Message: "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, f.issue())
}

func (f *fakeAPI) logout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	fail := f.logoutFail
	f.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "SERVER_ERROR", Message: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (f *fakeAPI) me(w http.ResponseWriter, r *http.Request) {
	if ok, code := f.authorized(r); !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: code})
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: f.user()})
}

func (f *fakeAPI) changePassword(w http.ResponseWriter, r *http.Request) {
	if ok, code := f.authorized(r); !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: code})
		return
	}
	var req changePasswordRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.CurrentPassword != "correct" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: CodeInvalidCurrentPassword, Message: "current password is incorrect"})
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (f *fakeAPI) protected(w http.ResponseWriter, r *http.Request) {
	f.protectedCalls.Add(1)
	if ok, code := f.authorized(r); !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: code})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bedmatch/pkg/accounts"
	"bedmatch/pkg/auth"
	"bedmatch/pkg/config"
	"bedmatch/pkg/matching"
	"bedmatch/pkg/session"
	"bedmatch/pkg/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

type client struct {
	srv    *testServer
	cookie *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithSessions(t, session.NewMemoryStore(time.Hour))
}

func newTestServerWithSessions(t *testing.T, sessions session.Store) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Server.FrontendDir = filepath.Join(dir, "dist")
	require.NoError(t, os.MkdirAll(cfg.Server.FrontendDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Server.FrontendDir, "index.html"), []byte("<div id=root></div>"), 0644))

	s, err := store.OpenBolt(filepath.Join(dir, "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	log := zap.NewNop()
	a := auth.New(&cfg.Auth, sessions)
	h := New(cfg,
		accounts.NewService(s, a, accounts.DefaultAvatars, log),
		matching.NewService(s, log),
		a, log)
	return &testServer{t: t, router: h.Router()}
}

func (s *testServer) anon() *client { return &client{srv: s} }

func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.srv.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.srv.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *client) send(req *http.Request) (int, map[string]any) {
	c.srv.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.srv.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(c.srv.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func (s *testServer) register(body map[string]any) {
	s.t.Helper()
	code, resp := s.anon().do(http.MethodPost, "/api/auth/register", body)
	require.Equal(s.t, http.StatusCreated, code, resp)
}

func (s *testServer) login(username, password string) *client {
	s.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"username":"`+username+`","password":"`+password+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	cookies := w.Result().Cookies()
	require.NotEmpty(s.t, cookies)
	return &client{srv: s, cookie: cookies[0]}
}

func seed(s *testServer) (patient, hospital *client) {
	s.register(map[string]any{"userType": "patient", "name": "Alice", "username": "alice123", "password": "secret1", "age": "34"})
	s.register(map[string]any{"userType": "hospital", "name": "City Hospital", "username": "hosp1", "password": "secret1", "totalBeds": 4, "emptyBeds": "2"})
	return s.login("alice123", "secret1"), s.login("hosp1", "secret1")
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t)
	c := s.anon()

	code, resp := c.do(http.MethodPost, "/api/auth/register", map[string]any{
		"userType": "patient", "name": "Al", "username": "al", "password": "secret1", "age": 20,
	})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Username must be at least 4 characters.", resp["message"])

	code, _ = c.do(http.MethodPost, "/api/auth/register", map[string]any{
		"userType": "hospital", "name": "H", "username": "hosp1", "password": "secret1", "totalBeds": 2, "emptyBeds": 3,
	})
	require.Equal(t, http.StatusBadRequest, code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	code, _ = c.send(req)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestUsernameAvailability(t *testing.T) {
	s := newTestServer(t)
	c := s.anon()

	code, resp := c.do(http.MethodGet, "/api/username?username=alice123", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, resp["available"])

	s.register(map[string]any{"userType": "patient", "name": "Alice", "username": "alice123", "password": "secret1", "age": 30})

	code, resp = c.do(http.MethodGet, "/api/username?username=alice123", nil)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, false, resp["available"])
	require.Equal(t, "Username is already taken", resp["message"])

	code, resp = c.do(http.MethodGet, "/api/username", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Username is required", resp["message"])
}

func TestLoginWhoAmILogout(t *testing.T) {
	s := newTestServer(t)
	patient, _ := seed(s)

	code, resp := s.anon().do(http.MethodGet, "/api/whoami", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, resp["loggedIn"])

	code, resp = patient.do(http.MethodGet, "/api/whoami", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, resp["loggedIn"])
	user := resp["user"].(map[string]any)
	require.Equal(t, "alice123", user["username"])
	require.Equal(t, "patient", user["userType"])
	require.NotContains(t, user, "password")

	code, _ = patient.do(http.MethodGet, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = patient.do(http.MethodGet, "/api/whoami", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, resp["loggedIn"])

	code, _ = patient.do(http.MethodGet, "/api/data/hospitals", nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestLogin_Failures(t *testing.T) {
	s := newTestServer(t)
	seed(s)
	c := s.anon()

	code, resp := c.do(http.MethodPost, "/api/auth/login", map[string]any{"username": "alice123", "password": "wrong12"})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "Wrong password!", resp["message"])

	code, resp = c.do(http.MethodPost, "/api/auth/login", map[string]any{"username": "nobody1", "password": "secret1"})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "Username not found.", resp["message"])

	code, _ = c.do(http.MethodPost, "/api/auth/login", map[string]any{"username": "alice123", "password": "bad pw!"})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestMatchingFlow(t *testing.T) {
	s := newTestServer(t)
	patient, hospital := seed(s)

	req := httptest.NewRequest(http.MethodGet, "/api/data/hospitals", nil)
	req.AddCookie(patient.cookie)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[{"name":"City Hospital","totalBeds":4,"emptyBeds":2,"username":"hosp1"}]`, w.Body.String())

	code, resp := hospital.do(http.MethodPost, "/api/data/admit", map[string]any{"who": "alice123"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "No pending request from this patient", resp["message"])

	code, resp = patient.do(http.MethodPost, "/api/data/request", map[string]any{"to": "hosp1"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Request sent successfully to City Hospital", resp["message"])

	code, resp = hospital.do(http.MethodPost, "/api/data/admit", map[string]any{"who": "alice123"})
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, resp["admits"], "alice123")
	require.Empty(t, resp["requests"])

	_, resp = patient.do(http.MethodGet, "/api/whoami", nil)
	user := resp["user"].(map[string]any)
	require.Equal(t, "admitted", user["state"])
	require.Equal(t, "hosp1", user["to"])

	_, resp = hospital.do(http.MethodGet, "/api/whoami", nil)
	require.EqualValues(t, 1, resp["user"].(map[string]any)["emptyBeds"])

	code, _ = patient.do(http.MethodPost, "/api/data/admit", map[string]any{"who": "alice123"})
	require.Equal(t, http.StatusNotFound, code)

	code, resp = hospital.do(http.MethodPost, "/api/data/release", map[string]any{"who": "alice123"})
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, resp["admits"])

	_, resp = hospital.do(http.MethodGet, "/api/whoami", nil)
	require.EqualValues(t, 2, resp["user"].(map[string]any)["emptyBeds"])

	code, _ = patient.do(http.MethodPost, "/api/data/request", map[string]any{"to": "hosp1"})
	require.Equal(t, http.StatusOK, code)
	code, resp = hospital.do(http.MethodPost, "/api/data/reject", map[string]any{"who": "alice123"})
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, resp["requests"])

	_, resp = patient.do(http.MethodGet, "/api/whoami", nil)
	require.Equal(t, "", resp["user"].(map[string]any)["state"])
}

func TestRequestCancel(t *testing.T) {
	s := newTestServer(t)
	patient, hospital := seed(s)

	code, _ := patient.do(http.MethodPost, "/api/data/request", map[string]any{"to": "missing"})
	require.Equal(t, http.StatusNotFound, code)

	code, _ = patient.do(http.MethodPost, "/api/data/request", map[string]any{})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = patient.do(http.MethodPost, "/api/data/request", map[string]any{"to": "hosp1"})
	require.Equal(t, http.StatusOK, code)

	code, resp := patient.do(http.MethodPost, "/api/data/cancel", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Request canceled successfully to City Hospital", resp["message"])

	_, resp = hospital.do(http.MethodGet, "/api/whoami", nil)
	require.Empty(t, resp["user"].(map[string]any)["requests"])
}

func TestNewAvatar(t *testing.T) {
	s := newTestServer(t)
	patient, _ := seed(s)

	upload := func(field string, content []byte) (int, map[string]any) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile(field, "me.gif")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPut, "/api/profile/newavatar", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return patient.send(req)
	}

	code, resp := upload("avatar", []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00"))
	require.Equal(t, http.StatusOK, code, resp)
	user := resp["user"].(map[string]any)
	require.Contains(t, user["avatar"], "data:image/gif;base64,")

	code, resp = upload("avatar", []byte("plain text, not an image"))
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Unsupported file type", resp["message"])

	code, resp = upload("picture", []byte("GIF89a"))
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "No image file found", resp["message"])

	req := httptest.NewRequest(http.MethodPut, "/api/profile/newavatar", nil)
	code, _ = s.anon().send(req)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestFrontend(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "<div id=root>")

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "BedMatch")

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nothing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionStoreOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	s := newTestServerWithSessions(t, session.NewRedisStore(client, time.Hour))
	patient, _ := seed(s)

	code, _ := patient.do(http.MethodGet, "/api/data/hospitals", nil)
	require.Equal(t, http.StatusOK, code)

	mr.Close()

	code, resp := patient.do(http.MethodGet, "/api/data/hospitals", nil)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "Something went wrong", resp["message"])

	code, resp = patient.do(http.MethodGet, "/api/whoami", nil)
	require.Equal(t, http.StatusInternalServerError, code)
	require.NotContains(t, resp, "loggedIn")

	// requests without a cookie never touch the session store
	code, resp = s.anon().do(http.MethodGet, "/api/whoami", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, resp["loggedIn"])
}

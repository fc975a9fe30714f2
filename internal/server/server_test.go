package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/userreg/internal/password"
	"github.com/sakif/userreg/internal/repository/sqlite"
	"github.com/sakif/userreg/internal/server"
)

type userJSON struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// newTestServer wires the real router to a fresh SQLite file.
func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hasher, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return server.New(server.Config{Addr: "127.0.0.1:0"}, store, hasher, logger).Handler()
}

func register(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), "body: %s", rr.Body.String())
	return rr, resp
}

func listUsers(t *testing.T, h http.Handler) []userJSON {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")

	var resp struct {
		Users []userJSON `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Users, "users must be an array, got %s", rr.Body.String())
	return resp.Users
}

func countEmail(users []userJSON, email string) int {
	n := 0
	for _, u := range users {
		if u.Email == email {
			n++
		}
	}
	return n
}

func TestRegisterThenDuplicate(t *testing.T) {
	h := newTestServer(t)
	body := `{"name":"Ann","email":"ANN@Example.com ","password":"secret1"}`

	rr, resp := register(t, h, body)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created userJSON
	require.NoError(t, json.Unmarshal(resp["user"], &created))
	assert.Equal(t, "ann@example.com", created.Email)
	assert.Equal(t, "Ann", created.Name)
	assert.Positive(t, created.ID)
	_, err := time.Parse(time.RFC3339Nano, created.CreatedAt)
	assert.NoError(t, err, "created_at %q must be ISO-8601", created.CreatedAt)
	assert.JSONEq(t, `"registered successfully"`, string(resp["message"]))

	rr, resp = register(t, h, body)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `"email already registered"`, string(resp["error"]))
	assert.Len(t, resp, 1, "error body must have a single key")

	users := listUsers(t, h)
	assert.Equal(t, 1, countEmail(users, "ann@example.com"))
	assert.Equal(t, created, users[0])
}

func TestShortPasswordNotPersisted(t *testing.T) {
	h := newTestServer(t)

	rr, resp := register(t, h, `{"name":"Bo","email":"bo@x.com","password":"123"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `"password must be at least 6 characters"`, string(resp["error"]))

	assert.Zero(t, countEmail(listUsers(t, h), "bo@x.com"))
}

func TestMissingFieldsNotPersisted(t *testing.T) {
	h := newTestServer(t)

	for _, body := range []string{
		`{"email":"a@x.com","password":"secret1"}`,
		`{"name":"  ","email":"a@x.com","password":"secret1"}`,
		`{"name":"A","password":"secret1"}`,
		`{"name":"A","email":"   ","password":"secret1"}`,
		`{"name":"A","email":"a@x.com"}`,
		`{"name":"A","email":"a@x.com","password":""}`,
	} {
		rr, resp := register(t, h, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.JSONEq(t, `"name, email and password are required"`, string(resp["error"]), body)
	}

	rr, resp := register(t, h, `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `"Send JSON with name, email, password"`, string(resp["error"]))

	assert.Empty(t, listUsers(t, h))
}

func TestListNewestFirst(t *testing.T) {
	h := newTestServer(t)

	for _, name := range []string{"A", "B", "C"} {
		rr, _ := register(t, h, fmt.Sprintf(`{"name":%q,"email":"%s@x.com","password":"secret1"}`, name, name))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	users := listUsers(t, h)
	require.Len(t, users, 3)
	assert.Equal(t, []string{"C", "B", "A"}, []string{users[0].Name, users[1].Name, users[2].Name})
	assert.Equal(t, "c@x.com", users[0].Email)
}

func TestConcurrentDuplicateRegistrations(t *testing.T) {
	h := newTestServer(t)

	const attempts = 6
	codes := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/register",
				bytes.NewBufferString(`{"name":"Racer","email":"race@x.com","password":"secret1"}`))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			codes[i] = rr.Code
		}(i)
	}
	wg.Wait()

	created, conflicts := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, created, "codes: %v", codes)
	assert.Equal(t, attempts-1, conflicts, "codes: %v", codes)
	assert.Equal(t, 1, countEmail(listUsers(t, h), "race@x.com"))
}

func TestJSONErrorsForUnknownRoutes(t *testing.T) {
	h := newTestServer(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/register", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.JSONEq(t, `{"error":"method not allowed"}`, rr.Body.String())
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestServe_ShutsDownAndClosesStore(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	hasher, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	srv := server.New(server.Config{ShutdownTimeout: time.Second}, store, hasher, logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/users")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	assert.Error(t, store.Ping(context.Background()), "store should be closed after shutdown")
}

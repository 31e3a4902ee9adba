package mockapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yitethio/liyt-driver/internal/mockapi"
	testlog "github.com/yitethio/liyt-driver/internal/testutil"
)

type testServer struct {
	store   *mockapi.Store
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := mockapi.NewStore(filepath.Join(t.TempDir(), "mockapi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, mockapi.Seed(context.Background(), store, testlog.New().Logger()))

	issuer, err := mockapi.NewIssuer("test-secret", 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	logger := testlog.New().Logger()
	h := mockapi.NewHandlers(store, issuer, logger)
	return &testServer{store: store, handler: mockapi.NewRouter(h, logger)}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type tokenPairBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *testServer) login(t *testing.T) tokenPairBody {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/drivers/sessions", "", map[string]string{
		"email":    mockapi.SeedDriverEmail,
		"password": mockapi.SeedDriverPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeBody[tokenPairBody](t, rec)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	pair := srv.login(t)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	rec := srv.do(t, http.MethodPost, "/drivers/sessions", "", map[string]string{
		"email":    mockapi.SeedDriverEmail,
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid email or password")
}

func TestRefresh_RotatesAndInvalidatesOldToken(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	pair := srv.login(t)

	rec := srv.do(t, http.MethodPost, "/drivers/sessions/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decodeBody[tokenPairBody](t, rec)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Replaying the consumed token fails.
	rec = srv.do(t, http.MethodPost, "/drivers/sessions/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The rotated token still works.
	rec = srv.do(t, http.MethodPost, "/drivers/sessions/refresh", "", map[string]string{
		"refresh_token": rotated.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegister(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	body := map[string]string{
		"email":     "new@example.com",
		"password":  "long-enough-password",
		"full_name": "New Driver",
		"phone":     "+251911999999",
	}
	rec := srv.do(t, http.MethodPost, "/drivers/registrations", "", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody[struct {
		tokenPairBody
		Driver struct {
			ID       int64  `json:"id"`
			Email    string `json:"email"`
			FullName string `json:"full_name"`
		} `json:"driver"`
	}](t, rec)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "new@example.com", resp.Driver.Email)

	// Same email again conflicts.
	rec = srv.do(t, http.MethodPost, "/drivers/registrations", "", body)
	require.Equal(t, http.StatusConflict, rec.Code)

	// Weak payloads are rejected before touching the store.
	rec = srv.do(t, http.MethodPost, "/drivers/registrations", "", map[string]string{
		"email": "not-an-email", "password": "long-enough-password", "full_name": "X",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMe(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	pair := srv.login(t)

	rec := srv.do(t, http.MethodGet, "/drivers/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), mockapi.SeedDriverEmail)

	rec = srv.do(t, http.MethodGet, "/drivers/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/drivers/me", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeliveries_ListAndGet(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	pair := srv.login(t)

	rec := srv.do(t, http.MethodGet, "/drivers/deliveries", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}](t, rec)
	require.Len(t, list, 3)

	rec = srv.do(t, http.MethodGet, fmt.Sprintf("/drivers/deliveries/%d", list[0].ID), pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/drivers/deliveries/99999", pair.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodGet, "/drivers/deliveries/abc", pair.AccessToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransition_AcceptThenConflict(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	pair := srv.login(t)

	rec := srv.do(t, http.MethodGet, "/drivers/deliveries", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]struct {
		ID int64 `json:"id"`
	}](t, rec)
	require.NotEmpty(t, list)
	id := list[0].ID

	rec = srv.do(t, http.MethodPatch, fmt.Sprintf("/drivers/deliveries/%d/accept", id), pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	accepted := decodeBody[struct {
		Status     string `json:"status"`
		AcceptedAt string `json:"accepted_at"`
	}](t, rec)
	require.Equal(t, "accepted", accepted.Status)
	require.NotEmpty(t, accepted.AcceptedAt)

	// Accepting an already-accepted job is a conflict.
	rec = srv.do(t, http.MethodPatch, fmt.Sprintf("/drivers/deliveries/%d/accept", id), pair.AccessToken, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	// Unknown transition segments are rejected up front.
	rec = srv.do(t, http.MethodPatch, fmt.Sprintf("/drivers/deliveries/%d/launch", id), pair.AccessToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// The rest of the lifecycle goes through.
	rec = srv.do(t, http.MethodPatch, fmt.Sprintf("/drivers/deliveries/%d/pickup", id), pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(t, http.MethodPatch, fmt.Sprintf("/drivers/deliveries/%d/complete", id), pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	completed := decodeBody[struct {
		Status string `json:"status"`
	}](t, rec)
	require.Equal(t, "delivered", completed.Status)
}

func TestMissingCoordinatesServedAsNull(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	pair := srv.login(t)

	rec := srv.do(t, http.MethodGet, "/drivers/deliveries", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]struct {
		PublicID string `json:"public_id"`
		Dropoff  struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		} `json:"dropoff"`
	}](t, rec)

	var found bool
	for _, d := range list {
		if d.PublicID == "DLV-1002" {
			found = true
			require.Nil(t, d.Dropoff.Latitude)
			require.Nil(t, d.Dropoff.Longitude)
		}
	}
	require.True(t, found)
}

func TestPing(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/ping", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pong", rec.Body.String())
}

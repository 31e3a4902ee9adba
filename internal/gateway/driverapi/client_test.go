package driverapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yitethio/liyt-driver/internal/apperr"
	"github.com/yitethio/liyt-driver/internal/gateway/driverapi"
	"github.com/yitethio/liyt-driver/internal/secstore"
	testlog "github.com/yitethio/liyt-driver/internal/testutil"
)

type counterStub struct{ n int64 }

func (c *counterStub) Inc()         { atomic.AddInt64(&c.n, 1) }
func (c *counterStub) Count() int64 { return atomic.LoadInt64(&c.n) }

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

const deliveryBody = `{"id":7,"public_id":"d-7","status":"pending","price":24.5,"created_at":"2026-02-10T10:30:00Z"}`

// backend is a scriptable fake driver API for gateway tests.
type backend struct {
	t            *testing.T
	validToken   string
	refreshCalls int64
	refreshDelay time.Duration
	refreshFails bool
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /drivers/sessions/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&b.refreshCalls, 1)
		time.Sleep(b.refreshDelay)

		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		require.NoError(b.t, json.NewDecoder(r.Body).Decode(&req))
		require.Empty(b.t, r.Header.Get("Authorization"), "refresh must be unauthenticated")

		if b.refreshFails || req.RefreshToken == "" {
			writeJSON(b.t, w, http.StatusUnauthorized, map[string]string{"message": "invalid refresh token"})
			return
		}
		writeJSON(b.t, w, http.StatusOK, map[string]string{
			"access_token":  b.validToken,
			"refresh_token": "rotated-" + req.RefreshToken,
		})
	})
	mux.HandleFunc("GET /drivers/deliveries", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+b.validToken {
			writeJSON(b.t, w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[" + deliveryBody + "]"))
	})
	return mux
}

func newTestClient(t *testing.T, b *backend, creds secstore.Store, opts ...driverapi.Option) *driverapi.Client {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)
	return driverapi.New(srv.URL, creds, testlog.New().Logger(), opts...)
}

func TestNew_NilCredentials(t *testing.T) {
	t.Parallel()

	require.Nil(t, driverapi.New("http://x", nil, nil))
}

func TestClient_ConcurrentExpiry_SingleRefresh(t *testing.T) {
	t.Parallel()

	b := &backend{t: t, validToken: "fresh", refreshDelay: 50 * time.Millisecond}
	creds := secstore.NewMemStore()
	require.NoError(t, creds.Set(secstore.KeyToken, "stale"))
	require.NoError(t, creds.Set(secstore.KeyRefreshToken, "rt-1"))

	refreshes := &counterStub{}
	replays := &counterStub{}
	c := newTestClient(t, b, creds, driverapi.WithMetrics(driverapi.Metrics{
		Refreshes: refreshes,
		Replays:   replays,
	}))

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Deliveries(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "request %d", i)
	}
	require.EqualValues(t, 1, atomic.LoadInt64(&b.refreshCalls), "concurrent 401s must collapse into one refresh")
	require.EqualValues(t, 1, refreshes.Count())

	token, err := creds.Get(secstore.KeyToken)
	require.NoError(t, err)
	require.Equal(t, "fresh", token)

	rt, err := creds.Get(secstore.KeyRefreshToken)
	require.NoError(t, err)
	require.Equal(t, "rotated-rt-1", rt, "rotated refresh token must be persisted")
}

func TestClient_RefreshFailure_EndsSession(t *testing.T) {
	t.Parallel()

	b := &backend{t: t, validToken: "fresh", refreshFails: true, refreshDelay: 30 * time.Millisecond}
	creds := secstore.NewMemStore()
	require.NoError(t, creds.Set(secstore.KeyToken, "stale"))
	require.NoError(t, creds.Set(secstore.KeyRefreshToken, "rt-1"))
	require.NoError(t, creds.Set(secstore.KeyUser, `{"id":1}`))

	var expired int64
	failures := &counterStub{}
	c := newTestClient(t, b, creds,
		driverapi.WithMetrics(driverapi.Metrics{RefreshFailures: failures}),
		driverapi.WithSessionExpiredHandler(func() { atomic.AddInt64(&expired, 1) }),
	)

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Deliveries(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.ErrorIs(t, err, apperr.ErrSessionExpired, "request %d", i)
	}
	require.Empty(t, creds.Keys(), "token, refresh_token and user must all be cleared")
	require.EqualValues(t, 1, atomic.LoadInt64(&expired), "session expiry hook fires once per cycle")
	require.EqualValues(t, 1, failures.Count())
	require.EqualValues(t, 1, atomic.LoadInt64(&b.refreshCalls))
}

func TestClient_RetriedRequest_SecondUnauthorizedPropagates(t *testing.T) {
	t.Parallel()

	// Refresh succeeds but hands out a token the deliveries endpoint
	// still rejects, so the replay hits a second 401.
	b := &backend{t: t, validToken: "never-issued"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/drivers/sessions/refresh" {
			atomic.AddInt64(&b.refreshCalls, 1)
			writeJSON(t, w, http.StatusOK, map[string]string{"access_token": "still-bad"})
			return
		}
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
	}))
	t.Cleanup(srv.Close)

	creds := secstore.NewMemStore()
	require.NoError(t, creds.Set(secstore.KeyToken, "stale"))
	require.NoError(t, creds.Set(secstore.KeyRefreshToken, "rt-1"))

	c := driverapi.New(srv.URL, creds, testlog.New().Logger())

	_, err := c.Deliveries(context.Background())
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	var apiErr *driverapi.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt64(&b.refreshCalls), "no second refresh for an already-retried request")
}

func TestClient_NoStoredToken_SendsUnauthenticated(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)

	c := driverapi.New(srv.URL, secstore.NewMemStore(), testlog.New().Logger())

	got, err := c.Deliveries(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestClient_NonAuthFailure_PropagatesUnchanged(t *testing.T) {
	t.Parallel()

	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		writeJSON(t, w, http.StatusConflict, map[string]string{"message": "delivery already accepted"})
	}))
	t.Cleanup(srv.Close)

	creds := secstore.NewMemStore()
	require.NoError(t, creds.Set(secstore.KeyToken, "t"))
	c := driverapi.New(srv.URL, creds, testlog.New().Logger())

	_, err := c.Transition(context.Background(), 7, "accept")
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.EqualValues(t, 1, atomic.LoadInt64(&calls), "no retry for non-401 failures")

	var apiErr *driverapi.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "delivery already accepted", apiErr.Message)
}

func TestClient_Login_StoresTokens_NoRefreshOnBadPassword(t *testing.T) {
	t.Parallel()

	var refreshCalls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/drivers/sessions":
			var req struct{ Email, Password string }
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Password != "hunter2" {
				writeJSON(t, w, http.StatusUnauthorized, map[string]string{"message": "invalid email or password"})
				return
			}
			writeJSON(t, w, http.StatusOK, map[string]string{"access_token": "at-1", "refresh_token": "rt-1"})
		case "/drivers/sessions/refresh":
			atomic.AddInt64(&refreshCalls, 1)
			writeJSON(t, w, http.StatusUnauthorized, map[string]string{"message": "nope"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)

	creds := secstore.NewMemStore()
	c := driverapi.New(srv.URL, creds, testlog.New().Logger())

	err := c.Login(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	var apiErr *driverapi.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "invalid email or password", apiErr.Message)
	require.Zero(t, atomic.LoadInt64(&refreshCalls), "a failed login must not start a refresh cycle")
	require.False(t, c.HasCredentials())

	require.NoError(t, c.Login(context.Background(), "a@b.c", "hunter2"))
	require.True(t, c.HasCredentials())

	rt, err := creds.Get(secstore.KeyRefreshToken)
	require.NoError(t, err)
	require.Equal(t, "rt-1", rt)
}

func TestClient_Register_PersistsTokensAndReturnsDriver(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/drivers/registrations", r.URL.Path)
		var req driverapi.RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "bike", req.VehicleType)

		writeJSON(t, w, http.StatusCreated, map[string]any{
			"access_token":  "at-2",
			"refresh_token": "rt-2",
			"driver": map[string]any{
				"id": 12, "email": req.Email, "full_name": req.FullName, "phone": req.Phone,
			},
		})
	}))
	t.Cleanup(srv.Close)

	creds := secstore.NewMemStore()
	c := driverapi.New(srv.URL, creds, testlog.New().Logger())

	driver, err := c.Register(context.Background(), driverapi.RegisterRequest{
		Email: "new@liyt.et", Password: "pw", FullName: "New Driver",
		Phone: "+251911223344", VehicleType: "bike", LicenseNumber: "L-1",
	})
	require.NoError(t, err)
	require.NotNil(t, driver)
	require.EqualValues(t, 12, driver.ID)
	require.True(t, c.HasCredentials())
}

func TestClient_TransitionScenario_PickupPath(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/drivers/deliveries/42/pickup", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"id": 42, "status": "picked_up",
			"picked_up_at": "2026-02-10T11:00:00Z",
			"created_at":   "2026-02-10T10:00:00Z",
		})
	}))
	t.Cleanup(srv.Close)

	creds := secstore.NewMemStore()
	require.NoError(t, creds.Set(secstore.KeyToken, "t"))
	c := driverapi.New(srv.URL, creds, testlog.New().Logger())

	d, err := c.Transition(context.Background(), 42, "pickup")
	require.NoError(t, err)
	require.EqualValues(t, 42, d.ID)
	require.EqualValues(t, "picked_up", d.Status)
	require.NotNil(t, d.PickedUpAt)
}

func TestClient_ContextCancelledWhileQueued(t *testing.T) {
	t.Parallel()

	b := &backend{t: t, validToken: "fresh", refreshDelay: 200 * time.Millisecond}
	creds := secstore.NewMemStore()
	require.NoError(t, creds.Set(secstore.KeyToken, "stale"))
	require.NoError(t, creds.Set(secstore.KeyRefreshToken, "rt-1"))
	c := newTestClient(t, b, creds)

	// First request initiates the slow refresh.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.Deliveries(context.Background())
		require.NoError(t, err)
	}()

	time.Sleep(50 * time.Millisecond)

	// Second request joins the queue, then gives up before the refresh
	// completes.
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err := c.Deliveries(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	wg.Wait()
}

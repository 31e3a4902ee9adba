package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yitethio/liyt-driver/internal/apperr"
	"github.com/yitethio/liyt-driver/internal/domain"
	"github.com/yitethio/liyt-driver/internal/gateway/driverapi"
	"github.com/yitethio/liyt-driver/internal/secstore"
	"github.com/yitethio/liyt-driver/internal/session"
	testlog "github.com/yitethio/liyt-driver/internal/testutil"
)

type fakeGateway struct {
	loginFn    func(ctx context.Context, email, password string) error
	registerFn func(ctx context.Context, req driverapi.RegisterRequest) (*domain.Driver, error)
	meFn       func(ctx context.Context) (domain.Driver, error)
	hasCreds   bool
	clearFn    func() error
}

func (f *fakeGateway) Login(ctx context.Context, email, password string) error {
	return f.loginFn(ctx, email, password)
}

func (f *fakeGateway) Register(ctx context.Context, req driverapi.RegisterRequest) (*domain.Driver, error) {
	return f.registerFn(ctx, req)
}

func (f *fakeGateway) Me(ctx context.Context) (domain.Driver, error) {
	return f.meFn(ctx)
}

func (f *fakeGateway) HasCredentials() bool { return f.hasCreds }

func (f *fakeGateway) ClearSession() error {
	if f.clearFn != nil {
		return f.clearFn()
	}
	return nil
}

func TestNewManager_NilDeps(t *testing.T) {
	t.Parallel()

	require.Nil(t, session.NewManager(nil, secstore.NewMemStore(), nil))
	require.Nil(t, session.NewManager(&fakeGateway{}, nil, nil))
}

func TestLogin_PersistsProfile(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		loginFn: func(_ context.Context, email, password string) error {
			require.Equal(t, "abel@example.com", email)
			require.Equal(t, "secret", password)
			return nil
		},
		meFn: func(context.Context) (domain.Driver, error) {
			return domain.Driver{ID: 7, Email: "abel@example.com", FullName: "Abel Tesfaye"}, nil
		},
	}
	store := secstore.NewMemStore()
	m := session.NewManager(gw, store, testlog.New().Logger())

	profile, err := m.Login(context.Background(), "abel@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "Abel Tesfaye", profile.FullName)

	cur, ok := m.Current()
	require.True(t, ok)
	require.EqualValues(t, 7, cur.ID)

	raw, err := store.Get(secstore.KeyUser)
	require.NoError(t, err)
	var stored domain.Driver
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	require.Equal(t, "abel@example.com", stored.Email)
}

func TestLogin_BadCredentialsPropagates(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		loginFn: func(context.Context, string, string) error {
			return &driverapi.APIError{StatusCode: 401, Message: "invalid email or password"}
		},
	}
	m := session.NewManager(gw, secstore.NewMemStore(), testlog.New().Logger())

	_, err := m.Login(context.Background(), "abel@example.com", "wrong")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	require.ErrorContains(t, err, "invalid email or password")

	_, ok := m.Current()
	require.False(t, ok)
}

func TestLogin_ProfileFetchFailureDoesNotFailLogin(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		loginFn: func(context.Context, string, string) error { return nil },
		meFn: func(context.Context) (domain.Driver, error) {
			return domain.Driver{}, errors.New("profile endpoint down")
		},
	}
	rec := testlog.New()
	m := session.NewManager(gw, secstore.NewMemStore(), rec.Logger())

	profile, err := m.Login(context.Background(), "abel@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "abel@example.com", profile.Email)
	require.True(t, rec.Contains("warn", "profile fetch after login failed"))
}

func TestRegister_PersistsReturnedDriver(t *testing.T) {
	t.Parallel()

	req := driverapi.RegisterRequest{
		Email:       "new@example.com",
		Password:    "secret",
		FullName:    "New Driver",
		Phone:       "+251911000000",
		VehicleType: "motorcycle",
	}
	gw := &fakeGateway{
		registerFn: func(_ context.Context, got driverapi.RegisterRequest) (*domain.Driver, error) {
			require.Equal(t, req, got)
			return &domain.Driver{ID: 12, Email: req.Email, FullName: req.FullName}, nil
		},
	}
	store := secstore.NewMemStore()
	m := session.NewManager(gw, store, testlog.New().Logger())

	profile, err := m.Register(context.Background(), req)
	require.NoError(t, err)
	require.EqualValues(t, 12, profile.ID)

	_, err = store.Get(secstore.KeyUser)
	require.NoError(t, err)
}

func TestRegister_MissingResponseBodyFallsBackToRequest(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		registerFn: func(context.Context, driverapi.RegisterRequest) (*domain.Driver, error) {
			return nil, nil
		},
	}
	m := session.NewManager(gw, secstore.NewMemStore(), testlog.New().Logger())

	profile, err := m.Register(context.Background(), driverapi.RegisterRequest{
		Email:    "new@example.com",
		FullName: "New Driver",
	})
	require.NoError(t, err)
	require.Equal(t, "New Driver", profile.FullName)
}

func TestLoadUser_NoCredentials(t *testing.T) {
	t.Parallel()

	m := session.NewManager(&fakeGateway{hasCreds: false}, secstore.NewMemStore(), testlog.New().Logger())

	_, ok, err := m.LoadUser(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadUser_RefreshesProfile(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		hasCreds: true,
		meFn: func(context.Context) (domain.Driver, error) {
			return domain.Driver{ID: 7, FullName: "Fresh Name"}, nil
		},
	}
	store := secstore.NewMemStore()
	require.NoError(t, store.Set(secstore.KeyUser, `{"id":7,"full_name":"Stale Name"}`))
	m := session.NewManager(gw, store, testlog.New().Logger())

	profile, ok, err := m.LoadUser(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Fresh Name", profile.FullName)

	raw, err := store.Get(secstore.KeyUser)
	require.NoError(t, err)
	require.Contains(t, raw, "Fresh Name")
}

func TestLoadUser_OfflineFallsBackToStoredProfile(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		hasCreds: true,
		meFn: func(context.Context) (domain.Driver, error) {
			return domain.Driver{}, errors.New("dial tcp: network unreachable")
		},
	}
	store := secstore.NewMemStore()
	require.NoError(t, store.Set(secstore.KeyUser, `{"id":7,"full_name":"Stored Name"}`))
	rec := testlog.New()
	m := session.NewManager(gw, store, rec.Logger())

	profile, ok, err := m.LoadUser(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Stored Name", profile.FullName)
	require.True(t, rec.Contains("warn", "profile refresh failed, using stored profile"))
}

func TestLoadUser_SessionExpiredPropagates(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		hasCreds: true,
		meFn: func(context.Context) (domain.Driver, error) {
			return domain.Driver{}, apperr.ErrSessionExpired
		},
	}
	store := secstore.NewMemStore()
	require.NoError(t, store.Set(secstore.KeyUser, `{"id":7}`))
	m := session.NewManager(gw, store, testlog.New().Logger())

	_, ok, err := m.LoadUser(context.Background())
	require.False(t, ok)
	require.ErrorIs(t, err, apperr.ErrSessionExpired)
}

func TestLogout_ClearsEverything(t *testing.T) {
	t.Parallel()

	store := secstore.NewMemStore()
	require.NoError(t, store.Set(secstore.KeyToken, "at"))
	require.NoError(t, store.Set(secstore.KeyRefreshToken, "rt"))
	require.NoError(t, store.Set(secstore.KeyUser, `{"id":7}`))

	gw := &fakeGateway{
		loginFn: func(context.Context, string, string) error { return nil },
		meFn: func(context.Context) (domain.Driver, error) {
			return domain.Driver{ID: 7}, nil
		},
		clearFn: func() error {
			for _, k := range []string{secstore.KeyToken, secstore.KeyRefreshToken, secstore.KeyUser} {
				if err := store.Delete(k); err != nil {
					return err
				}
			}
			return nil
		},
	}
	m := session.NewManager(gw, store, testlog.New().Logger())

	_, err := m.Login(context.Background(), "abel@example.com", "secret")
	require.NoError(t, err)

	require.NoError(t, m.Logout(context.Background()))

	_, ok := m.Current()
	require.False(t, ok)
	require.Empty(t, store.Keys(), "logout leaves no persisted keys behind")
}

func TestHandleSessionExpired_FiresHookAndDropsProfile(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		loginFn: func(context.Context, string, string) error { return nil },
		meFn: func(context.Context) (domain.Driver, error) {
			return domain.Driver{ID: 7}, nil
		},
	}
	rec := testlog.New()
	m := session.NewManager(gw, secstore.NewMemStore(), rec.Logger())

	_, err := m.Login(context.Background(), "abel@example.com", "secret")
	require.NoError(t, err)

	fired := 0
	m.SetOnExpired(func() { fired++ })
	m.HandleSessionExpired()

	require.Equal(t, 1, fired)
	_, ok := m.Current()
	require.False(t, ok)
	require.True(t, rec.Contains("warn", "session expired, sign-in required"))
}

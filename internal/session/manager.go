// Package session owns the sign-in/sign-out flows and the persisted
// driver profile. Raw tokens stay inside the gateway client; this
// package only touches the serialized profile.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/yitethio/liyt-driver/internal/apperr"
	"github.com/yitethio/liyt-driver/internal/domain"
	"github.com/yitethio/liyt-driver/internal/gateway/driverapi"
	"github.com/yitethio/liyt-driver/internal/logx"
	"github.com/yitethio/liyt-driver/internal/secstore"
)

type gateway interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, req driverapi.RegisterRequest) (*domain.Driver, error)
	Me(ctx context.Context) (domain.Driver, error)
	HasCredentials() bool
	ClearSession() error
}

// Manager tracks the authenticated driver.
type Manager struct {
	gw     gateway
	store  secstore.Store
	logger logx.Logger

	mu        sync.Mutex
	current   *domain.Driver
	onExpired func()
}

// NewManager creates a session manager; gw and store must not be nil.
func NewManager(gw gateway, store secstore.Store, logger logx.Logger) *Manager {
	if gw == nil || store == nil {
		return nil
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Manager{gw: gw, store: store, logger: logger}
}

// SetOnExpired registers a hook invoked when the session ends without
// an explicit logout; the UI routes to the login screen from it.
func (m *Manager) SetOnExpired(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpired = fn
}

// HandleSessionExpired is wired into the gateway's session-expired
// signal: it drops the in-memory profile and notifies the UI. The
// gateway has already cleared persisted credentials at this point.
func (m *Manager) HandleSessionExpired() {
	m.mu.Lock()
	m.current = nil
	fn := m.onExpired
	m.mu.Unlock()

	m.logger.Warn("session expired, sign-in required")
	if fn != nil {
		fn()
	}
}

// Login signs the driver in and fetches the profile. A failed profile
// fetch does not fail the login; a placeholder profile is returned and
// the next LoadUser retries.
func (m *Manager) Login(ctx context.Context, email, password string) (domain.Driver, error) {
	if err := m.gw.Login(ctx, email, password); err != nil {
		return domain.Driver{}, err
	}

	profile, err := m.gw.Me(ctx)
	if err != nil {
		m.logger.Warn("profile fetch after login failed", logx.Err(err))
		profile = domain.Driver{Email: email}
	} else if err := m.persist(profile); err != nil {
		m.logger.Error("persisting profile", logx.Err(err))
	}

	m.setCurrent(profile)
	m.logger.Info("driver signed in",
		logx.String("event", "login"),
		logx.String("driver", profile.DisplayName()),
	)
	return profile, nil
}

// Register creates an account. The server issues a token pair with the
// registration; the returned driver record (or one built from the
// request when the server omitted it) is persisted as the profile.
func (m *Manager) Register(ctx context.Context, req driverapi.RegisterRequest) (domain.Driver, error) {
	driver, err := m.gw.Register(ctx, req)
	if err != nil {
		return domain.Driver{}, err
	}

	profile := domain.Driver{
		Email:         req.Email,
		FullName:      req.FullName,
		Phone:         req.Phone,
		VehicleType:   req.VehicleType,
		LicenseNumber: req.LicenseNumber,
	}
	if driver != nil {
		profile = *driver
	}
	if err := m.persist(profile); err != nil {
		m.logger.Error("persisting profile", logx.Err(err))
	}
	m.setCurrent(profile)
	return profile, nil
}

// LoadUser restores the session at startup. ok is false when no
// credentials are stored — a normal signed-out state, not an error.
// With credentials present the profile is refreshed from the backend,
// falling back to the stored copy if the fetch fails for a reason
// other than session expiry.
func (m *Manager) LoadUser(ctx context.Context) (domain.Driver, bool, error) {
	if !m.gw.HasCredentials() {
		return domain.Driver{}, false, nil
	}

	profile, err := m.gw.Me(ctx)
	if err == nil {
		if err := m.persist(profile); err != nil {
			m.logger.Error("persisting profile", logx.Err(err))
		}
		m.setCurrent(profile)
		return profile, true, nil
	}
	if errors.Is(err, apperr.ErrSessionExpired) {
		return domain.Driver{}, false, err
	}

	stored, ok := m.stored()
	if !ok {
		return domain.Driver{}, false, err
	}
	m.logger.Warn("profile refresh failed, using stored profile", logx.Err(err))
	m.setCurrent(stored)
	return stored, true, nil
}

// Logout clears every persisted credential and the in-memory profile.
func (m *Manager) Logout(context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if err := m.gw.ClearSession(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	m.logger.Info("driver signed out", logx.String("event", "logout"))
	return nil
}

// Current returns the signed-in driver's profile, if any.
func (m *Manager) Current() (domain.Driver, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return domain.Driver{}, false
	}
	return *m.current, true
}

func (m *Manager) setCurrent(d domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &d
}

func (m *Manager) persist(d domain.Driver) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return m.store.Set(secstore.KeyUser, string(raw))
}

func (m *Manager) stored() (domain.Driver, bool) {
	raw, err := m.store.Get(secstore.KeyUser)
	if err != nil {
		return domain.Driver{}, false
	}
	var d domain.Driver
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return domain.Driver{}, false
	}
	return d, true
}

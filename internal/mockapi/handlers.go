package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/yitethio/liyt-driver/internal/apperr"
	"github.com/yitethio/liyt-driver/internal/domain"
	"github.com/yitethio/liyt-driver/internal/logx"
)

// Handlers serves the driver REST endpoints.
type Handlers struct {
	store  *Store
	issuer *Issuer
	logger logx.Logger
}

// NewHandlers wires the store and token issuer into HTTP handlers.
func NewHandlers(store *Store, issuer *Issuer, logger logx.Logger) *Handlers {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Handlers{store: store, issuer: issuer, logger: logger}
}

type ctxKey int

const driverIDKey ctxKey = iota

const bodyLimit = 1 << 20

type errResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		h.logger.Error("json encode", logx.Err(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.logger.Debug("http error",
		logx.String("path", r.URL.Path),
		logx.Int("status", status),
		logx.String("msg", msg),
	)
	h.writeJSON(w, status, errResponse{Error: msg})
}

func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		h.writeError(w, r, http.StatusBadRequest, "invalid json: trailing data")
		return false
	}
	return true
}

func idFromURL(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// RequireAuth verifies the bearer token and stores the driver id in the
// request context.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
			h.writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		driverID, err := h.issuer.Verify(auth[len(prefix):])
		if err != nil {
			h.writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), driverIDKey, driverID)))
	})
}

func driverFromCtx(r *http.Request) int64 {
	id, _ := r.Context().Value(driverIDKey).(int64)
	return id
}

// Login handles POST /drivers/sessions.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if ok := h.decodeJSON(w, r, &req); !ok {
		return
	}

	row, err := h.store.DriverByEmail(r.Context(), req.Email)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(req.Password))
	}
	if err != nil {
		h.writeError(w, r, http.StatusUnauthorized, "invalid email or password")
		return
	}

	pair, err := h.issuePair(r.Context(), row.Driver.ID)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("driver logged in", logx.Int64("driver_id", row.Driver.ID))
	h.writeJSON(w, http.StatusOK, pair)
}

// Refresh handles POST /drivers/sessions/refresh. The presented token
// is consumed and a rotated pair is returned; replaying a consumed
// token fails with 401.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if ok := h.decodeJSON(w, r, &req); !ok {
		return
	}
	if req.RefreshToken == "" {
		h.writeError(w, r, http.StatusBadRequest, "refresh_token required")
		return
	}

	driverID, err := h.store.ConsumeRefreshToken(r.Context(), req.RefreshToken, time.Now())
	if err != nil {
		h.writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	pair, err := h.issuePair(r.Context(), driverID)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("session refreshed", logx.Int64("driver_id", driverID))
	h.writeJSON(w, http.StatusOK, pair)
}

// Register handles POST /drivers/registrations.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if ok := h.decodeJSON(w, r, &req); !ok {
		return
	}
	if msg := validateRegistration(req); msg != "" {
		h.writeError(w, r, http.StatusUnprocessableEntity, msg)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	driver, err := h.store.CreateDriver(r.Context(),
		req.Email, string(hash), req.FullName, req.Phone, req.VehicleType, req.LicenseNumber)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrConflict):
		h.writeError(w, r, http.StatusConflict, "email already registered")
		return
	default:
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	pair, err := h.issuePair(r.Context(), driver.ID)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("driver registered", logx.Int64("driver_id", driver.ID))
	h.writeJSON(w, http.StatusCreated, registrationResponseJSON{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Driver:       &driver,
	})
}

func validateRegistration(req registerRequest) string {
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "invalid email"
	}
	if len(req.Password) < 8 {
		return "password must be at least 8 characters"
	}
	if req.FullName == "" {
		return "full_name required"
	}
	return ""
}

// Me handles GET /drivers/me.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	driver, err := h.store.DriverByID(r.Context(), driverFromCtx(r))
	if err != nil {
		h.writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	h.writeJSON(w, http.StatusOK, driver)
}

// ListDeliveries handles GET /drivers/deliveries.
func (h *Handlers) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.DeliveriesForDriver(r.Context(), driverFromCtx(r))
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]deliveryJSON, 0, len(list))
	for _, d := range list {
		out = append(out, toDeliveryJSON(d))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// GetDelivery handles GET /drivers/deliveries/{id}.
func (h *Handlers) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	d, err := h.store.DeliveryByID(r.Context(), id)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, toDeliveryJSON(d))
	case errors.Is(err, apperr.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "not found")
	default:
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// Transition handles PATCH /drivers/deliveries/{id}/{transition}.
func (h *Handlers) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	tr := domain.Transition(chi.URLParam(r, "transition"))
	if _, ok := tr.Result(); !ok {
		h.writeError(w, r, http.StatusBadRequest, "unknown transition")
		return
	}

	updated, err := h.store.ApplyTransition(r.Context(), id, driverFromCtx(r), tr, time.Now())
	switch {
	case err == nil:
		h.logger.Info("delivery transitioned",
			logx.Int64("delivery_id", id),
			logx.String("transition", string(tr)),
			logx.String("status", string(updated.Status)),
		)
		h.writeJSON(w, http.StatusOK, toDeliveryJSON(updated))
	case errors.Is(err, apperr.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrConflict):
		h.writeError(w, r, http.StatusConflict, "delivery is not available for this action")
	default:
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// Ping handles GET /ping.
func (h *Handlers) Ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

func (h *Handlers) issuePair(ctx context.Context, driverID int64) (tokenPairJSON, error) {
	pair, refreshExpiry, err := h.issuer.Issue(driverID)
	if err != nil {
		return tokenPairJSON{}, err
	}
	if err := h.store.SaveRefreshToken(ctx, pair.RefreshToken, driverID, refreshExpiry); err != nil {
		return tokenPairJSON{}, err
	}
	return tokenPairJSON{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

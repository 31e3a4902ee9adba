package driverapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yitethio/liyt-driver/internal/domain"
	"github.com/yitethio/liyt-driver/internal/logx"
)

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"full_name"`
	Phone         string `json:"phone"`
	VehicleType   string `json:"vehicle_type"`
	LicenseNumber string `json:"license_number"`
}

// Login exchanges credentials for a token pair and persists it.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	var pair tokenPairDTO
	if err := c.doJSON(ctx, http.MethodPost, "/drivers/sessions", body, &pair, false); err != nil {
		return err
	}
	return c.storeTokens(pair.AccessToken, pair.RefreshToken)
}

// Register creates a driver account, persists the issued token pair,
// and returns the driver record when the server included one.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*domain.Driver, error) {
	var resp registrationResponseDTO
	if err := c.doJSON(ctx, http.MethodPost, "/drivers/registrations", req, &resp, false); err != nil {
		return nil, err
	}
	if err := c.storeTokens(resp.AccessToken, resp.RefreshToken); err != nil {
		return nil, err
	}
	return resp.Driver, nil
}

// Me fetches the authenticated driver's profile.
func (c *Client) Me(ctx context.Context) (domain.Driver, error) {
	var d domain.Driver
	if err := c.doJSON(ctx, http.MethodGet, "/drivers/me", nil, &d, true); err != nil {
		return domain.Driver{}, err
	}
	return d, nil
}

// Deliveries lists the driver's visible deliveries.
func (c *Client) Deliveries(ctx context.Context) ([]domain.Delivery, error) {
	var dtos []deliveryDTO
	if err := c.doJSON(ctx, http.MethodGet, "/drivers/deliveries", nil, &dtos, true); err != nil {
		return nil, err
	}
	out := make([]domain.Delivery, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, c.normalize(dto))
	}
	return out, nil
}

// Delivery fetches one delivery by id.
func (c *Client) Delivery(ctx context.Context, id int64) (domain.Delivery, error) {
	var dto deliveryDTO
	path := fmt.Sprintf("/drivers/deliveries/%d", id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &dto, true); err != nil {
		return domain.Delivery{}, err
	}
	return c.normalize(dto), nil
}

// Transition issues a status transition and returns the server's
// authoritative updated record.
func (c *Client) Transition(ctx context.Context, id int64, tr domain.Transition) (domain.Delivery, error) {
	var dto deliveryDTO
	path := fmt.Sprintf("/drivers/deliveries/%d/%s", id, tr)
	if err := c.doJSON(ctx, http.MethodPatch, path, nil, &dto, true); err != nil {
		return domain.Delivery{}, err
	}
	return c.normalize(dto), nil
}

func (c *Client) normalize(dto deliveryDTO) domain.Delivery {
	d := dto.toDomain()
	if d.Pickup.CoordinatesEstimated || d.Dropoff.CoordinatesEstimated {
		c.logger.Warn("delivery missing coordinates, using default location",
			logx.Int64("delivery_id", d.ID),
			logx.String("status", string(d.Status)),
		)
	}
	return d
}

package mockapi

import (
	"time"

	"github.com/yitethio/liyt-driver/internal/domain"
)

// Wire shapes mirror the production backend's JSON so the gateway
// client cannot tell the two apart.

type stopJSON struct {
	ID           int64    `json:"id"`
	Kind         string   `json:"kind"`
	Sequence     int      `json:"sequence"`
	Address1     string   `json:"address1"`
	City         string   `json:"city"`
	Region       string   `json:"region,omitempty"`
	ContactName  string   `json:"contact_name,omitempty"`
	ContactPhone string   `json:"contact_phone,omitempty"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

type businessJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type customerJSON struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
}

type deliveryJSON struct {
	ID          int64         `json:"id"`
	PublicID    string        `json:"public_id"`
	Status      string        `json:"status"`
	Price       float64       `json:"price"`
	Description string        `json:"description,omitempty"`
	BusinessID  int64         `json:"business_id"`
	DriverID    *int64        `json:"driver_id"`
	Pickup      *stopJSON     `json:"pickup"`
	Dropoff     *stopJSON     `json:"dropoff"`
	Business    *businessJSON `json:"business,omitempty"`
	Customer    *customerJSON `json:"customer,omitempty"`
	AcceptedAt  *time.Time    `json:"accepted_at,omitempty"`
	PickedUpAt  *time.Time    `json:"picked_up_at,omitempty"`
	DeliveredAt *time.Time    `json:"delivered_at,omitempty"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

func toDeliveryJSON(d domain.Delivery) deliveryJSON {
	out := deliveryJSON{
		ID:          d.ID,
		PublicID:    d.PublicID,
		Status:      string(d.Status),
		Price:       d.Price,
		Description: d.Description,
		BusinessID:  d.BusinessID,
		DriverID:    d.DriverID,
		Pickup:      toStopJSON(d.Pickup),
		Dropoff:     toStopJSON(d.Dropoff),
		AcceptedAt:  d.AcceptedAt,
		PickedUpAt:  d.PickedUpAt,
		DeliveredAt: d.DeliveredAt,
		CancelledAt: d.CancelledAt,
		CreatedAt:   d.CreatedAt,
	}
	if d.Business != nil {
		out.Business = &businessJSON{ID: d.Business.ID, Name: d.Business.Name}
	}
	if d.Customer != nil {
		out.Customer = &customerJSON{ID: d.Customer.ID, FullName: d.Customer.FullName, Phone: d.Customer.Phone}
	}
	return out
}

func toStopJSON(s domain.Stop) *stopJSON {
	out := &stopJSON{
		ID:           s.ID,
		Kind:         string(s.Kind),
		Sequence:     s.Sequence,
		Address1:     s.Address,
		City:         s.City,
		Region:       s.Region,
		ContactName:  s.ContactName,
		ContactPhone: s.ContactPhone,
	}
	// Stops that fell back to the default location go out with null
	// coordinates, same as records that never had any.
	if !s.CoordinatesEstimated && s.Coordinates.Usable() {
		lat, lng := s.Coordinates.Latitude, s.Coordinates.Longitude
		out.Latitude, out.Longitude = &lat, &lng
	}
	return out
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type registerRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"full_name"`
	Phone         string `json:"phone"`
	VehicleType   string `json:"vehicle_type"`
	LicenseNumber string `json:"license_number"`
}

type tokenPairJSON struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type registrationResponseJSON struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	Driver       *domain.Driver `json:"driver"`
}

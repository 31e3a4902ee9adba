package driverapi

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/yitethio/liyt-driver/internal/domain"
)

// coordValue decodes a coordinate the backend may send as a JSON
// number, a numeric string, or null. Anything unparsable is treated as
// missing so one sloppy field cannot sink the whole delivery; the
// normalization step substitutes the default location.
type coordValue struct {
	value float64
	ok    bool
}

func (c *coordValue) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		c.value, c.ok = f, true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			c.value, c.ok = f, true
		}
	}
	return nil
}

type stopDTO struct {
	ID           int64      `json:"id"`
	Kind         string     `json:"kind"`
	Sequence     int        `json:"sequence"`
	Address1     string     `json:"address1"`
	City         string     `json:"city"`
	Region       string     `json:"region"`
	ContactName  string     `json:"contact_name"`
	ContactPhone string     `json:"contact_phone"`
	Latitude     coordValue `json:"latitude"`
	Longitude    coordValue `json:"longitude"`
}

type addressDTO struct {
	Address1  string     `json:"address1"`
	City      string     `json:"city"`
	Region    string     `json:"region"`
	Latitude  coordValue `json:"latitude"`
	Longitude coordValue `json:"longitude"`
}

type businessDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type customerDTO struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

type itemDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type deliveryDTO struct {
	ID             int64        `json:"id"`
	PublicID       string       `json:"public_id"`
	Status         string       `json:"status"`
	Price          float64      `json:"price"`
	Description    string       `json:"description"`
	BusinessID     int64        `json:"business_id"`
	DriverID       *int64       `json:"driver_id"`
	CustomerID     *int64       `json:"customer_id"`
	Pickup         *stopDTO     `json:"pickup"`
	Dropoff        *stopDTO     `json:"dropoff"`
	PickupAddress  *addressDTO  `json:"pickup_address"`
	DropoffAddress *addressDTO  `json:"dropoff_address"`
	Business       *businessDTO `json:"business"`
	Customer       *customerDTO `json:"customer"`
	Items          []itemDTO    `json:"items"`
	AcceptedAt     *time.Time   `json:"accepted_at"`
	PickedUpAt     *time.Time   `json:"picked_up_at"`
	DeliveredAt    *time.Time   `json:"delivered_at"`
	CancelledAt    *time.Time   `json:"cancelled_at"`
	CreatedAt      time.Time    `json:"created_at"`
}

// toDomain is the single normalization step between the wire and the
// canonical Delivery shape.
func (d deliveryDTO) toDomain() domain.Delivery {
	out := domain.Delivery{
		ID:          d.ID,
		PublicID:    d.PublicID,
		Status:      domain.Status(d.Status),
		Price:       d.Price,
		Description: d.Description,
		BusinessID:  d.BusinessID,
		DriverID:    d.DriverID,
		CustomerID:  d.CustomerID,
		Pickup:      normalizeStop(d.Pickup, d.PickupAddress, domain.StopPickup),
		Dropoff:     normalizeStop(d.Dropoff, d.DropoffAddress, domain.StopDropoff),
		AcceptedAt:  d.AcceptedAt,
		PickedUpAt:  d.PickedUpAt,
		DeliveredAt: d.DeliveredAt,
		CancelledAt: d.CancelledAt,
		CreatedAt:   d.CreatedAt,
	}
	if d.Business != nil {
		out.Business = &domain.BusinessRef{ID: d.Business.ID, Name: d.Business.Name}
	}
	if d.Customer != nil {
		out.Customer = &domain.CustomerRef{ID: d.Customer.ID, FullName: d.Customer.FullName, Phone: d.Customer.Phone}
	}
	for _, it := range d.Items {
		out.Items = append(out.Items, domain.Item{ID: it.ID, Name: it.Name, Quantity: it.Quantity})
	}
	return out
}

// normalizeStop builds the canonical stop from the stop record when
// present, falling back to the flat address block older records carry.
// Coordinates are resolved in the same preference order.
func normalizeStop(s *stopDTO, addr *addressDTO, kind domain.StopKind) domain.Stop {
	out := domain.Stop{Kind: kind}

	var stopCoords, addrCoords *domain.Coordinates
	if s != nil {
		out.ID = s.ID
		out.Sequence = s.Sequence
		out.Address = s.Address1
		out.City = s.City
		out.Region = s.Region
		out.ContactName = s.ContactName
		out.ContactPhone = s.ContactPhone
		if k := domain.StopKind(s.Kind); k == domain.StopPickup || k == domain.StopDropoff {
			out.Kind = k
		}
		if s.Latitude.ok && s.Longitude.ok {
			stopCoords = &domain.Coordinates{Latitude: s.Latitude.value, Longitude: s.Longitude.value}
		}
	} else if addr != nil {
		out.Address = addr.Address1
		out.City = addr.City
		out.Region = addr.Region
	}
	if addr != nil && addr.Latitude.ok && addr.Longitude.ok {
		addrCoords = &domain.Coordinates{Latitude: addr.Latitude.value, Longitude: addr.Longitude.value}
	}

	out.Coordinates, out.CoordinatesEstimated = domain.ResolveCoordinates(stopCoords, addrCoords)
	return out
}

type tokenPairDTO struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type registrationResponseDTO struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	Driver       *domain.Driver `json:"driver"`
}

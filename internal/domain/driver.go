package domain

import (
	"strings"
	"time"
)

// Driver is the authenticated driver's profile.
type Driver struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	// FullName is canonical; Name is what older records carry.
	FullName      string     `json:"full_name"`
	Name          string     `json:"name,omitempty"`
	Phone         string     `json:"phone"`
	Status        string     `json:"status,omitempty"`
	VehicleType   string     `json:"vehicle_type,omitempty"`
	LicenseNumber string     `json:"license_number,omitempty"`
	Rating        *float64   `json:"rating,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
}

// DisplayName returns the name shown in the UI: full name, falling back
// to the email local part, then to a generic placeholder.
func (d Driver) DisplayName() string {
	if name := strings.TrimSpace(d.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(d.Name); name != "" {
		return name
	}
	if at := strings.IndexByte(d.Email, '@'); at > 0 {
		return d.Email[:at]
	}
	return "Driver"
}

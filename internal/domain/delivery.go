package domain

import "time"

// StopKind distinguishes pickup from dropoff stops.
type StopKind string

// List of stop kinds.
const (
	StopPickup  StopKind = "pickup"
	StopDropoff StopKind = "dropoff"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Stop is one end of a delivery route after normalization: the address
// and contact of a pickup or dropoff.
type Stop struct {
	ID           int64
	Kind         StopKind
	Sequence     int
	Address      string
	City         string
	Region       string
	ContactName  string
	ContactPhone string
	Coordinates  Coordinates
	// CoordinatesEstimated marks stops whose source record carried no
	// usable coordinates and fell back to the default location.
	CoordinatesEstimated bool
}

// Item is one line item carried in a delivery.
type Item struct {
	ID       int64
	Name     string
	Quantity int
}

// BusinessRef identifies the business that posted the job.
type BusinessRef struct {
	ID   int64
	Name string
}

// CustomerRef identifies the receiving customer.
type CustomerRef struct {
	ID       int64
	FullName string
	Phone    string
}

// Delivery - struct representing one delivery job. Records are created
// server-side; this client only fetches and transitions them.
type Delivery struct {
	ID          int64
	PublicID    string
	Status      Status
	Price       float64
	Description string
	BusinessID  int64
	DriverID    *int64
	CustomerID  *int64
	Pickup      Stop
	Dropoff     Stop
	Business    *BusinessRef
	Customer    *CustomerRef
	Items       []Item
	AcceptedAt  *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
}

package mockapi

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/yitethio/liyt-driver/internal/domain"
	"github.com/yitethio/liyt-driver/internal/logx"
)

// Demo account created by Seed.
const (
	SeedDriverEmail    = "demo@liyt.et"
	SeedDriverPassword = "password123"
)

// Seed populates an empty database with a demo driver and sample jobs.
// A database that already has drivers is left untouched.
func Seed(ctx context.Context, store *Store, logger logx.Logger) error {
	if logger == nil {
		logger = logx.Nop()
	}

	var count int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drivers`).Scan(&count); err != nil {
		return fmt.Errorf("counting drivers: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(SeedDriverPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing seed password: %w", err)
	}
	driver, err := store.CreateDriver(ctx,
		SeedDriverEmail, string(hash), "Demo Driver", "+251911000000", "motorcycle", "AA-1234")
	if err != nil {
		return fmt.Errorf("creating seed driver: %w", err)
	}

	for _, d := range sampleDeliveries() {
		if _, err := store.InsertDelivery(ctx, d); err != nil {
			return fmt.Errorf("inserting seed delivery %s: %w", d.PublicID, err)
		}
	}

	logger.Info("database seeded",
		logx.String("driver", SeedDriverEmail),
		logx.Int64("driver_id", driver.ID),
	)
	return nil
}

func sampleDeliveries() []domain.Delivery {
	coords := func(lat, lng float64) domain.Coordinates {
		return domain.Coordinates{Latitude: lat, Longitude: lng}
	}
	return []domain.Delivery{
		{
			PublicID:    "DLV-1001",
			Price:       245.50,
			Description: "Documents, urgent",
			BusinessID:  1,
			Business:    &domain.BusinessRef{ID: 1, Name: "Bole Fulfillment Center"},
			Customer:    &domain.CustomerRef{FullName: "Hanna Bekele", Phone: "+251922000001"},
			Pickup: domain.Stop{
				Address: "Bole Road, Friendship Building", City: "Addis Ababa",
				ContactName: "Warehouse Desk", ContactPhone: "+251911111111",
				Coordinates: coords(8.9936, 38.7870),
			},
			Dropoff: domain.Stop{
				Address: "CMC, St. Michael Area", City: "Addis Ababa",
				ContactName: "Hanna Bekele", ContactPhone: "+251922000001",
				Coordinates: coords(9.0227, 38.8294),
			},
		},
		{
			PublicID:    "DLV-1002",
			Price:       187.00,
			Description: "Restaurant order, fragile",
			BusinessID:  2,
			Business:    &domain.BusinessRef{ID: 2, Name: "Kategna Restaurant"},
			Customer:    &domain.CustomerRef{FullName: "Samuel Girma", Phone: "+251922000002"},
			Pickup: domain.Stop{
				Address: "Meskel Flower Road", City: "Addis Ababa",
				ContactName: "Kitchen", ContactPhone: "+251911222222",
				Coordinates: coords(9.0003, 38.7555),
			},
			// No dropoff coordinates on purpose: exercises the client's
			// default-location fallback.
			Dropoff: domain.Stop{
				Address: "Gerji, Mebrat Hail", City: "Addis Ababa",
				ContactName: "Samuel Girma", ContactPhone: "+251922000002",
			},
		},
		{
			PublicID:    "DLV-1003",
			Price:       320.00,
			Description: "Electronics parcel",
			BusinessID:  3,
			Business:    &domain.BusinessRef{ID: 3, Name: "Merkato Electronics"},
			Customer:    &domain.CustomerRef{FullName: "Lensa Tolossa", Phone: "+251922000003"},
			Pickup: domain.Stop{
				Address: "Merkato, Anwar Mosque Area", City: "Addis Ababa",
				ContactName: "Shop Counter", ContactPhone: "+251911333333",
				Coordinates: coords(9.0336, 38.7411),
			},
			Dropoff: domain.Stop{
				Address: "Summit Condominiums", City: "Addis Ababa",
				ContactName: "Lensa Tolossa", ContactPhone: "+251922000003",
				Coordinates: coords(9.0093, 38.8634),
			},
		},
	}
}

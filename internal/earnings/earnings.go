// Package earnings computes the wallet summary from the driver's
// delivery history. Only delivered jobs count as earnings.
package earnings

import (
	"sort"
	"time"

	"github.com/yitethio/liyt-driver/internal/domain"
)

// Transaction is one row in the wallet's transaction history.
type Transaction struct {
	DeliveryID  int64     `json:"delivery_id"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

// Summary is the wallet screen's data: today's and lifetime earnings
// plus job counters.
type Summary struct {
	TodayEarnings float64       `json:"today_earnings"`
	TotalEarnings float64       `json:"total_earnings"`
	TotalJobs     int           `json:"total_jobs"`
	CompletedJobs int           `json:"completed_jobs"`
	Transactions  []Transaction `json:"transactions"`
}

// Summarize builds the wallet summary. "Today" is the calendar day of
// now in now's location. Deliveries without a delivered timestamp fall
// back to their creation time for the transaction date.
func Summarize(deliveries []domain.Delivery, now time.Time) Summary {
	var s Summary
	s.TotalJobs = len(deliveries)

	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	for _, dl := range deliveries {
		if dl.Status != domain.StatusDelivered {
			continue
		}
		s.CompletedJobs++
		s.TotalEarnings += dl.Price

		date := dl.CreatedAt
		if dl.DeliveredAt != nil {
			date = *dl.DeliveredAt
		}
		if !date.Before(dayStart) && date.Before(dayStart.Add(24*time.Hour)) {
			s.TodayEarnings += dl.Price
		}

		desc := dl.Description
		if desc == "" {
			desc = "Delivery " + dl.PublicID
		}
		s.Transactions = append(s.Transactions, Transaction{
			DeliveryID:  dl.ID,
			Amount:      dl.Price,
			Date:        date,
			Description: desc,
		})
	}

	// Newest first, matching the wallet history view.
	sort.SliceStable(s.Transactions, func(i, j int) bool {
		return s.Transactions[i].Date.After(s.Transactions[j].Date)
	})
	return s
}

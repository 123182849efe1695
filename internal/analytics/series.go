package analytics

import (
	"sort"
	"strings"

	"github.com/tripledger/tripledger/internal/trips"
)

// DailyPoint is one calendar day of trip spending.
type DailyPoint struct {
	Date       trips.Date `json:"date"`
	Amount     Minor      `json:"amount"`
	Cumulative Minor      `json:"cumulative"`
}

// DailySeries returns one point per day from the trip's start date to its end date inclusive.
// Days without purchases are zero; purchases dated outside the trip are left out.
func DailySeries(trip trips.Trip, purchases []trips.Purchase) []DailyPoint {
	days := trip.Days()
	if days == 0 {
		return nil
	}
	points := make([]DailyPoint, days)
	for i := range points {
		points[i].Date = trip.StartDate.AddDays(i)
	}
	for _, p := range purchases {
		if p.Date.IsZero() || p.Date.Before(trip.StartDate.Time) || p.Date.After(trip.EndDate.Time) {
			continue
		}
		idx := int(p.Date.Sub(trip.StartDate.Time).Hours() / 24)
		points[idx].Amount += ToMinor(p.Amount, trip.Currency)
	}
	var running Minor
	for i := range points {
		running += points[i].Amount
		points[i].Cumulative = running
	}
	return points
}

// CategoryTotal is the spending of one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Amount   Minor   `json:"amount"`
	Count    int     `json:"count"`
	Share    float64 `json:"share"`
}

// Uncategorized labels purchases without a category.
const Uncategorized = "other"

// CategoryBreakdown totals purchases per category, largest first. Ties are ordered by name.
func CategoryBreakdown(purchases []trips.Purchase, code string) []CategoryTotal {
	index := make(map[string]int)
	var out []CategoryTotal
	var total Minor
	for _, p := range purchases {
		name := strings.ToLower(strings.TrimSpace(p.Category))
		if name == "" {
			name = Uncategorized
		}
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, CategoryTotal{Category: name})
		}
		amount := ToMinor(p.Amount, code)
		out[i].Amount += amount
		out[i].Count++
		total += amount
	}
	for i := range out {
		if total != 0 {
			out[i].Share = float64(out[i].Amount) / float64(total)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Amount != out[b].Amount {
			return out[a].Amount > out[b].Amount
		}
		return out[a].Category < out[b].Category
	})
	return out
}

// PurchaseFilter selects purchases. Zero fields match everything.
type PurchaseFilter struct {
	// ParticipantID matches purchases the participant paid for or shares.
	ParticipantID int64
	Category      string
	From          trips.Date
	To            trips.Date
}

// Filter returns the purchases matching f, ordered by date then id.
func Filter(purchases []trips.Purchase, f PurchaseFilter) []trips.Purchase {
	category := strings.ToLower(strings.TrimSpace(f.Category))
	out := make([]trips.Purchase, 0, len(purchases))
	for _, p := range purchases {
		if f.ParticipantID != 0 && !involves(p, f.ParticipantID) {
			continue
		}
		if category != "" && strings.ToLower(strings.TrimSpace(p.Category)) != category {
			continue
		}
		if !f.From.IsZero() && p.Date.Before(f.From.Time) {
			continue
		}
		if !f.To.IsZero() && p.Date.After(f.To.Time) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].Date.Equal(out[b].Date.Time) {
			return out[a].Date.Before(out[b].Date.Time)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

func involves(p trips.Purchase, participantID int64) bool {
	if p.PayerID == participantID {
		return true
	}
	for _, id := range p.SharedWith {
		if id == participantID {
			return true
		}
	}
	return false
}

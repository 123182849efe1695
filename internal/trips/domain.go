package trips

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/currency"

	"github.com/tripledger/tripledger/internal/platform/validation"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time zone.
type Date struct {
	time.Time
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("trips: parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// NewDate builds a Date from its parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// MarshalJSON encodes the date as YYYY-MM-DD, or null when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts YYYY-MM-DD, a full RFC 3339 timestamp, an empty string or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*d = Date{}
		return nil
	}
	if len(raw) > len(DateLayout) {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("trips: parse date %q: %w", raw, err)
		}
		*d = NewDate(ts.Date())
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Trip is a journey whose expenses are shared.
type Trip struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Destination string  `json:"destination,omitempty"`
	StartDate   Date    `json:"startDate"`
	EndDate     Date    `json:"endDate"`
	Currency    string  `json:"currency"`
	Budget      float64 `json:"budget,omitempty"`
	OwnerID     int64   `json:"ownerId"`
}

// Days reports the number of calendar days the trip spans, both ends included.
func (t Trip) Days() int {
	if t.StartDate.IsZero() || t.EndDate.IsZero() || t.EndDate.Before(t.StartDate.Time) {
		return 0
	}
	return int(t.EndDate.Sub(t.StartDate.Time).Hours()/24) + 1
}

// Input returns the editable fields of t, ready to be changed and sent back with Update.
func (t Trip) Input() TripInput {
	return TripInput{
		Name:        t.Name,
		Destination: t.Destination,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		Currency:    t.Currency,
		Budget:      t.Budget,
	}
}

// Participant is a person sharing a trip's expenses.
type Participant struct {
	ID     int64  `json:"id"`
	TripID int64  `json:"tripId"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
}

// Purchase is an expense paid by one participant and split evenly between SharedWith.
type Purchase struct {
	ID          int64   `json:"id"`
	TripID      int64   `json:"tripId"`
	PayerID     int64   `json:"payerId"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Date        Date    `json:"date"`
	SharedWith  []int64 `json:"sharedWith"`
}

// Statistics is the backend's summary of a trip.
type Statistics struct {
	TotalSpent    float64            `json:"totalSpent"`
	PurchaseCount int                `json:"purchaseCount"`
	ByCategory    map[string]float64 `json:"byCategory"`
}

// TripInput creates or updates a trip.
type TripInput struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Destination string  `json:"destination,omitempty" validate:"max=120"`
	StartDate   Date    `json:"startDate"`
	EndDate     Date    `json:"endDate"`
	Currency    string  `json:"currency" validate:"required,len=3"`
	Budget      float64 `json:"budget,omitempty" validate:"gte=0"`
}

// ParticipantInput adds a person to a trip.
type ParticipantInput struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// PurchaseInput records an expense.
type PurchaseInput struct {
	PayerID     int64   `json:"payerId" validate:"gt=0"`
	Description string  `json:"description" validate:"required,max=200"`
	Category    string  `json:"category" validate:"required,max=50"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Date        Date    `json:"date"`
	SharedWith  []int64 `json:"sharedWith" validate:"required,min=1,dive,gt=0"`
}

func init() {
	validation.RegisterStructRules(tripInputRules, TripInput{})
	validation.RegisterStructRules(purchaseInputRules, PurchaseInput{})
}

func tripInputRules(sl validator.StructLevel) {
	in := sl.Current().Interface().(TripInput)
	if in.StartDate.IsZero() {
		sl.ReportError(in.StartDate, "StartDate", "StartDate", "required", "")
	}
	if in.EndDate.IsZero() {
		sl.ReportError(in.EndDate, "EndDate", "EndDate", "required", "")
	} else if !in.StartDate.IsZero() && in.EndDate.Before(in.StartDate.Time) {
		sl.ReportError(in.EndDate, "EndDate", "EndDate", "gtefield", "StartDate")
	}
	if len(in.Currency) == 3 {
		if _, err := currency.ParseISO(in.Currency); err != nil {
			sl.ReportError(in.Currency, "Currency", "Currency", "iso4217", "")
		}
	}
}

func purchaseInputRules(sl validator.StructLevel) {
	in := sl.Current().Interface().(PurchaseInput)
	if in.Date.IsZero() {
		sl.ReportError(in.Date, "Date", "Date", "required", "")
	}
	seen := make(map[int64]bool, len(in.SharedWith))
	for _, id := range in.SharedWith {
		if seen[id] {
			sl.ReportError(in.SharedWith, "SharedWith", "SharedWith", "unique", "")
			return
		}
		seen[id] = true
	}
}

// Normalize trims text fields and upper-cases the currency code.
func (in TripInput) Normalize() TripInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Destination = strings.TrimSpace(in.Destination)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	return in
}

package apitest

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tripledger/tripledger/internal/platform/httpx"
)

// Trip is the backend's trip document.
type Trip struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Destination string  `json:"destination,omitempty"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	Currency    string  `json:"currency"`
	Budget      float64 `json:"budget,omitempty"`
	OwnerID     int64   `json:"ownerId"`
}

// Participant is a person on a trip.
type Participant struct {
	ID     int64  `json:"id"`
	TripID int64  `json:"tripId"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
}

// Purchase is an expense paid by one participant and shared by others.
type Purchase struct {
	ID          int64   `json:"id"`
	TripID      int64   `json:"tripId"`
	PayerID     int64   `json:"payerId"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	SharedWith  []int64 `json:"sharedWith"`
}

// SeedTrip stores a trip with its participants and purchases and returns the trip id.
// Ids on the passed values are assigned by the backend.
func (b *Backend) SeedTrip(trip Trip, participants []Participant, purchases []Purchase) (int64, []Participant, []Purchase) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	trip.ID = b.nextID
	b.trips[trip.ID] = &trip
	for i := range participants {
		b.nextID++
		participants[i].ID = b.nextID
		participants[i].TripID = trip.ID
	}
	b.participants[trip.ID] = append([]Participant(nil), participants...)
	for i := range purchases {
		b.nextID++
		purchases[i].ID = b.nextID
		purchases[i].TripID = trip.ID
	}
	b.purchases[trip.ID] = append([]Purchase(nil), purchases...)
	return trip.ID, participants, purchases
}

func (b *Backend) mountTrips(r chi.Router) {
	r.Use(b.requireAuth)
	r.Get("/", b.listTrips)
	r.Post("/", b.createTrip)
	r.Route("/{tripID}", func(r chi.Router) {
		r.Get("/", b.getTrip)
		r.Put("/", b.updateTrip)
		r.Delete("/", b.deleteTrip)
		r.Get("/participants", b.listParticipants)
		r.Post("/participants", b.addParticipant)
		r.Delete("/participants/{itemID}", b.removeParticipant)
		r.Get("/purchases", b.listPurchases)
		r.Post("/purchases", b.addPurchase)
		r.Delete("/purchases/{itemID}", b.deletePurchase)
		r.Get("/statistics", b.statistics)
	})
}

func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := b.authenticate(r); err != nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (b *Backend) tripFor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := idParam(r, "tripID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid trip id")
		return 0, false
	}
	acc, _, _ := b.authenticate(r)
	b.mu.Lock()
	trip, exists := b.trips[id]
	b.mu.Unlock()
	if !exists {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "trip not found")
		return 0, false
	}
	if !visibleTo(trip, acc) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "not a member of this trip")
		return 0, false
	}
	return id, true
}

// visibleTo reports whether acc may see trip. Trips seeded without an owner are public.
func visibleTo(trip *Trip, acc *account) bool {
	return trip.OwnerID == 0 || (acc != nil && acc.profile.ID == trip.OwnerID)
}

func (b *Backend) listTrips(w http.ResponseWriter, r *http.Request) {
	acc, _, _ := b.authenticate(r)
	b.mu.Lock()
	out := make([]Trip, 0, len(b.trips))
	for id := int64(1); id <= b.nextID; id++ {
		if t, ok := b.trips[id]; ok && visibleTo(t, acc) {
			out = append(out, *t)
		}
	}
	b.mu.Unlock()
	httpx.JSON(w, http.StatusOK, out)
}

func (b *Backend) createTrip(w http.ResponseWriter, r *http.Request) {
	var trip Trip
	if err := httpx.DecodeJSON(r, &trip); err != nil || trip.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "name required")
		return
	}
	acc, _, _ := b.authenticate(r)
	b.mu.Lock()
	b.nextID++
	trip.ID = b.nextID
	if acc != nil {
		trip.OwnerID = acc.profile.ID
	}
	b.trips[trip.ID] = &trip
	b.mu.Unlock()
	httpx.JSON(w, http.StatusCreated, trip)
}

func (b *Backend) getTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := b.tripFor(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	trip := *b.trips[id]
	b.mu.Unlock()
	httpx.JSON(w, http.StatusOK, trip)
}

func (b *Backend) updateTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := b.tripFor(w, r)
	if !ok {
		return
	}
	var trip Trip
	if err := httpx.DecodeJSON(r, &trip); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	b.mu.Lock()
	trip.ID = id
	trip.OwnerID = b.trips[id].OwnerID
	b.trips[id] = &trip
	b.mu.Unlock()
	httpx.JSON(w, http.StatusOK, trip)
}

func (b *Backend) deleteTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := b.tripFor(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	delete(b.trips, id)
	delete(b.participants, id)
	delete(b.purchases, id)
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) listParticipants(w http.ResponseWriter, r *http.Request) {
	id, ok := b.tripFor(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	out := append([]Participant{}, b.participants[id]...)
	b.mu.Unlock()
	httpx.JSON(w, http.StatusOK, out)
}

func (b *Backend) addParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := b.tripFor(w, r)
	if !ok {
		return
	}
	var p Participant
	if err := httpx.DecodeJSON(r, &p); err != nil || p.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "name required")
		return
	}
	b.mu.Lock()
	b.nextID++
	p.ID = b.nextID
	p.TripID = id
	b.participants[id] = append(b.participants[id], p)
	b.mu.Unlock()
	httpx.JSON(w, http.StatusCreated, p)
}

func (b *Backend) removeParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := b.tripFor(w, r)
	if !ok {
		return
	}
	itemID, _ := idParam(r, "itemID")
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.participants[id]
	for i, p := range list {
		if p.ID == itemID {
			b.participants[id] = append(list[:i:i], list[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	httpx.Problem(w, http.StatusNotFound, "Not Found", "participant not found")
}

func (b *Backend) listPurchases(w http.ResponseWriter, r *http.Request) {
	id, ok := b.tripFor(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	out := append([]Purchase{}, b.purchases[id]...)
	b.mu.Unlock()
	httpx.JSON(w, http.StatusOK, out)
}

func (b *Backend) addPurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := b.tripFor(w, r)
	if !ok {
		return
	}
	var p Purchase
	if err := httpx.DecodeJSON(r, &p); err != nil || p.Amount <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "amount must be positive")
		return
	}
	b.mu.Lock()
	b.nextID++
	p.ID = b.nextID
	p.TripID = id
	b.purchases[id] = append(b.purchases[id], p)
	b.mu.Unlock()
	httpx.JSON(w, http.StatusCreated, p)
}

func (b *Backend) deletePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := b.tripFor(w, r)
	if !ok {
		return
	}
	itemID, _ := idParam(r, "itemID")
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.purchases[id]
	for i, p := range list {
		if p.ID == itemID {
			b.purchases[id] = append(list[:i:i], list[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	httpx.Problem(w, http.StatusNotFound, "Not Found", "purchase not found")
}

func (b *Backend) statistics(w http.ResponseWriter, r *http.Request) {
	id, ok := b.tripFor(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	byCategory := make(map[string]float64)
	total := 0.0
	for _, p := range b.purchases[id] {
		total += p.Amount
		byCategory[p.Category] += p.Amount
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"totalSpent":    total,
		"purchaseCount": len(b.purchases[id]),
		"byCategory":    byCategory,
	})
}

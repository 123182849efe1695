// Package analytics computes trip statistics for display: daily spending, category totals,
// per-participant balances and settlement transfers.
package analytics

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tripledger/tripledger/internal/trips"
)

// Source is the part of trips.Service the dashboard reads from.
type Source interface {
	Get(ctx context.Context, tripID int64) (trips.Trip, error)
	Participants(ctx context.Context, tripID int64) ([]trips.Participant, error)
	Purchases(ctx context.Context, tripID int64) ([]trips.Purchase, error)
}

// Dashboard is everything the trip overview shows.
type Dashboard struct {
	Trip         trips.Trip          `json:"trip"`
	Participants []trips.Participant `json:"participants"`
	Purchases    []trips.Purchase    `json:"purchases"`
	Total        Minor               `json:"total"`
	Daily        []DailyPoint        `json:"daily"`
	Categories   []CategoryTotal     `json:"categories"`
	Balances     []Balance           `json:"balances"`
	Settlement   []Transfer          `json:"settlement"`
}

// ParticipantName returns the display name of a participant, or "" when unknown.
func (d Dashboard) ParticipantName(id int64) string {
	for _, p := range d.Participants {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

// Service coordinates dashboard loading with the cache layer.
type Service struct {
	source Source
	cache  *Cache
}

// NewService wires a Source with a Cache helper. cache may be nil.
func NewService(source Source, cache *Cache) *Service {
	return &Service{source: source, cache: cache}
}

// Dashboard returns the overview of tripID as viewerID sees it. The trip itself is always
// fetched from the backend so access is rechecked on every call, even when the computed
// overview is served from cache.
func (s *Service) Dashboard(ctx context.Context, viewerID, tripID int64) (Dashboard, error) {
	trip, err := s.source.Get(ctx, tripID)
	if err != nil {
		return Dashboard{}, err
	}
	loader := func(ctx context.Context) (any, error) {
		return s.load(ctx, trip)
	}
	key, err := s.cache.BuildKey(ctx, viewerID, tripID, "dashboard")
	if err != nil {
		return Dashboard{}, err
	}
	var out Dashboard
	if err := s.cache.FetchJSON(ctx, key, &out, loader); err != nil {
		return Dashboard{}, err
	}
	out.Trip = trip
	return out, nil
}

func (s *Service) load(ctx context.Context, trip trips.Trip) (Dashboard, error) {
	var (
		participants []trips.Participant
		purchases    []trips.Purchase
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = s.source.Participants(gctx, trip.ID)
		return err
	})
	g.Go(func() error {
		var err error
		purchases, err = s.source.Purchases(gctx, trip.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return Build(trip, participants, purchases), nil
}

// Build computes a Dashboard from already loaded data.
func Build(trip trips.Trip, participants []trips.Participant, purchases []trips.Purchase) Dashboard {
	sorted := Filter(purchases, PurchaseFilter{})
	var total Minor
	for _, p := range sorted {
		total += ToMinor(p.Amount, trip.Currency)
	}
	balances := Balances(participants, sorted, trip.Currency)
	return Dashboard{
		Trip:         trip,
		Participants: participants,
		Purchases:    sorted,
		Total:        total,
		Daily:        DailySeries(trip, sorted),
		Categories:   CategoryBreakdown(sorted, trip.Currency),
		Balances:     balances,
		Settlement:   Settle(balances),
	}
}

// Package trips exposes the trip, participant and purchase endpoints as typed operations.
package trips

import (
	"context"
	"log/slog"

	"github.com/tripledger/tripledger/internal/api"
	"github.com/tripledger/tripledger/internal/platform/validation"
)

// ChangeNotifier is told when the purchases or participants of a trip change.
type ChangeNotifier interface {
	TripChanged(ctx context.Context, tripID int64) error
}

// Service wraps the trip endpoints of the API client.
type Service struct {
	client   *api.Client
	notifier ChangeNotifier
	logger   *slog.Logger
}

// NewService constructs a Service. notifier may be nil.
func NewService(client *api.Client, notifier ChangeNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, notifier: notifier, logger: logger}
}

// List returns the trips of the signed-in user.
func (s *Service) List(ctx context.Context) ([]Trip, error) {
	out, err := decode[[]Trip](s.client.ListTrips(ctx))
	if out == nil && err == nil {
		out = []Trip{}
	}
	return out, err
}

// Get fetches one trip.
func (s *Service) Get(ctx context.Context, tripID int64) (Trip, error) {
	return decode[Trip](s.client.GetTrip(ctx, tripID))
}

// Create validates in and creates a trip.
func (s *Service) Create(ctx context.Context, in TripInput) (Trip, error) {
	in = in.Normalize()
	if err := validation.Struct(in); err != nil {
		return Trip{}, err
	}
	return decode[Trip](s.client.CreateTrip(ctx, in))
}

// Update replaces the editable fields of a trip.
func (s *Service) Update(ctx context.Context, tripID int64, in TripInput) (Trip, error) {
	in = in.Normalize()
	if err := validation.Struct(in); err != nil {
		return Trip{}, err
	}
	trip, err := decode[Trip](s.client.UpdateTrip(ctx, tripID, in))
	if err == nil {
		s.changed(ctx, tripID)
	}
	return trip, err
}

// Delete removes a trip.
func (s *Service) Delete(ctx context.Context, tripID int64) error {
	if err := check(s.client.DeleteTrip(ctx, tripID)); err != nil {
		return err
	}
	s.changed(ctx, tripID)
	return nil
}

// Participants lists the people on a trip.
func (s *Service) Participants(ctx context.Context, tripID int64) ([]Participant, error) {
	return decode[[]Participant](s.client.ListParticipants(ctx, tripID))
}

// AddParticipant adds a person to a trip.
func (s *Service) AddParticipant(ctx context.Context, tripID int64, in ParticipantInput) (Participant, error) {
	if err := validation.Struct(in); err != nil {
		return Participant{}, err
	}
	p, err := decode[Participant](s.client.AddParticipant(ctx, tripID, in))
	if err == nil {
		s.changed(ctx, tripID)
	}
	return p, err
}

// RemoveParticipant removes a person from a trip.
func (s *Service) RemoveParticipant(ctx context.Context, tripID, participantID int64) error {
	if err := check(s.client.RemoveParticipant(ctx, tripID, participantID)); err != nil {
		return err
	}
	s.changed(ctx, tripID)
	return nil
}

// Purchases lists the expenses of a trip.
func (s *Service) Purchases(ctx context.Context, tripID int64) ([]Purchase, error) {
	return decode[[]Purchase](s.client.ListPurchases(ctx, tripID))
}

// AddPurchase records an expense.
func (s *Service) AddPurchase(ctx context.Context, tripID int64, in PurchaseInput) (Purchase, error) {
	if err := validation.Struct(in); err != nil {
		return Purchase{}, err
	}
	p, err := decode[Purchase](s.client.AddPurchase(ctx, tripID, in))
	if err == nil {
		s.changed(ctx, tripID)
	}
	return p, err
}

// DeletePurchase removes an expense.
func (s *Service) DeletePurchase(ctx context.Context, tripID, purchaseID int64) error {
	if err := check(s.client.DeletePurchase(ctx, tripID, purchaseID)); err != nil {
		return err
	}
	s.changed(ctx, tripID)
	return nil
}

// Statistics fetches the backend's summary of a trip.
func (s *Service) Statistics(ctx context.Context, tripID int64) (Statistics, error) {
	return decode[Statistics](s.client.TripStatistics(ctx, tripID))
}

func (s *Service) changed(ctx context.Context, tripID int64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.TripChanged(ctx, tripID); err != nil {
		s.logger.Warn("trip change notification", slog.Int64("trip_id", tripID), slog.Any("error", err))
	}
}

func check(resp *api.Response, err error) error {
	if err != nil {
		return err
	}
	return resp.Err()
}

func decode[T any](resp *api.Response, err error) (T, error) {
	var out T
	if err := check(resp, err); err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

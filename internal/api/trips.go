package api

import (
	"context"
	"fmt"
	"net/http"
)

const pathTrips = "/api/trips"

func tripPath(tripID int64) string {
	return fmt.Sprintf("%s/%d", pathTrips, tripID)
}

// ListTrips returns the trips visible to the current user.
func (c *Client) ListTrips(ctx context.Context) (*Response, error) {
	return c.authed(ctx, "trips.list", http.MethodGet, pathTrips, nil)
}

// GetTrip fetches one trip.
func (c *Client) GetTrip(ctx context.Context, tripID int64) (*Response, error) {
	return c.authed(ctx, "trips.get", http.MethodGet, tripPath(tripID), nil)
}

// CreateTrip posts a new trip.
func (c *Client) CreateTrip(ctx context.Context, body any) (*Response, error) {
	return c.authed(ctx, "trips.create", http.MethodPost, pathTrips, body)
}

// UpdateTrip replaces a trip.
func (c *Client) UpdateTrip(ctx context.Context, tripID int64, body any) (*Response, error) {
	return c.authed(ctx, "trips.update", http.MethodPut, tripPath(tripID), body)
}

// DeleteTrip removes a trip.
func (c *Client) DeleteTrip(ctx context.Context, tripID int64) (*Response, error) {
	return c.authed(ctx, "trips.delete", http.MethodDelete, tripPath(tripID), nil)
}

// ListParticipants lists the people sharing a trip.
func (c *Client) ListParticipants(ctx context.Context, tripID int64) (*Response, error) {
	return c.authed(ctx, "participants.list", http.MethodGet, tripPath(tripID)+"/participants", nil)
}

// AddParticipant adds a person to a trip.
func (c *Client) AddParticipant(ctx context.Context, tripID int64, body any) (*Response, error) {
	return c.authed(ctx, "participants.add", http.MethodPost, tripPath(tripID)+"/participants", body)
}

// RemoveParticipant removes a person from a trip.
func (c *Client) RemoveParticipant(ctx context.Context, tripID, participantID int64) (*Response, error) {
	path := fmt.Sprintf("%s/participants/%d", tripPath(tripID), participantID)
	return c.authed(ctx, "participants.remove", http.MethodDelete, path, nil)
}

// ListPurchases lists a trip's purchases.
func (c *Client) ListPurchases(ctx context.Context, tripID int64) (*Response, error) {
	return c.authed(ctx, "purchases.list", http.MethodGet, tripPath(tripID)+"/purchases", nil)
}

// AddPurchase records a purchase on a trip.
func (c *Client) AddPurchase(ctx context.Context, tripID int64, body any) (*Response, error) {
	return c.authed(ctx, "purchases.add", http.MethodPost, tripPath(tripID)+"/purchases", body)
}

// DeletePurchase removes a purchase.
func (c *Client) DeletePurchase(ctx context.Context, tripID, purchaseID int64) (*Response, error) {
	path := fmt.Sprintf("%s/purchases/%d", tripPath(tripID), purchaseID)
	return c.authed(ctx, "purchases.delete", http.MethodDelete, path, nil)
}

// TripStatistics fetches server-side aggregates for a trip.
func (c *Client) TripStatistics(ctx context.Context, tripID int64) (*Response, error) {
	return c.authed(ctx, "trips.statistics", http.MethodGet, tripPath(tripID)+"/statistics", nil)
}

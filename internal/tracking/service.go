// Package tracking serves the mock shipment routes. The routes are static
// reference data and nothing here moves them along.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"greenledger/internal/models"
	"greenledger/internal/refdata"
	"greenledger/internal/util"
)

// ErrRouteNotFound is returned for an unknown route id or tracking number
var ErrRouteNotFound = errors.New("tracking route not found")

// RouteView is a route with its derived progress
type RouteView struct {
	models.TrackingRoute
	Progress int                        `json:"progress"`
	Current  *models.TrackingCheckpoint `json:"currentCheckpoint,omitempty"`
}

// Summary counts routes per status
type Summary struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

// Service answers tracking queries
type Service struct {
	routes []models.TrackingRoute
}

// NewService creates a tracking service over the given routes, or the
// built-in ones when routes is nil.
func NewService(routes []models.TrackingRoute) *Service {
	if routes == nil {
		routes = refdata.Routes()
	}
	return &Service{routes: routes}
}

func view(r models.TrackingRoute) RouteView {
	return RouteView{TrackingRoute: r, Progress: Progress(r), Current: CurrentCheckpoint(r)}
}

// List returns every route, or those with the given status
func (s *Service) List(ctx context.Context, status string) ([]RouteView, error) {
	_, span := util.StartSpan(ctx, "TrackingService.List")
	defer span.End()

	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" && !models.IsTrackingStatus(status) {
		return nil, fmt.Errorf("unknown tracking status %q", status)
	}

	out := make([]RouteView, 0, len(s.routes))
	for _, r := range s.routes {
		if status == "" || r.Status == status {
			out = append(out, view(r))
		}
	}
	return out, nil
}

// Get returns one route by id
func (s *Service) Get(ctx context.Context, id string) (*RouteView, error) {
	for _, r := range s.routes {
		if strings.EqualFold(r.ID, id) {
			v := view(r)
			return &v, nil
		}
	}
	return nil, ErrRouteNotFound
}

// FindByTrackingNumber returns one route by its tracking number
func (s *Service) FindByTrackingNumber(ctx context.Context, number string) (*RouteView, error) {
	number = strings.TrimSpace(number)
	for _, r := range s.routes {
		if strings.EqualFold(r.TrackingNumber, number) {
			v := view(r)
			return &v, nil
		}
	}
	return nil, ErrRouteNotFound
}

// Summary counts routes per status
func (s *Service) Summary(ctx context.Context) Summary {
	sum := Summary{ByStatus: map[string]int{
		models.TrackingStatusPending:   0,
		models.TrackingStatusActive:    0,
		models.TrackingStatusCompleted: 0,
		models.TrackingStatusDelayed:   0,
	}}
	for _, r := range s.routes {
		sum.Total++
		sum.ByStatus[r.Status]++
	}
	return sum
}

// Progress is the percentage of completed checkpoints, rounded down
func Progress(r models.TrackingRoute) int {
	if len(r.Checkpoints) == 0 {
		if r.Status == models.TrackingStatusCompleted {
			return 100
		}
		return 0
	}
	done := 0
	for _, cp := range r.Checkpoints {
		if cp.Status == models.TrackingStatusCompleted {
			done++
		}
	}
	return done * 100 / len(r.Checkpoints)
}

// CurrentCheckpoint is the first checkpoint not yet completed, nil once
// the route is done.
func CurrentCheckpoint(r models.TrackingRoute) *models.TrackingCheckpoint {
	for i := range r.Checkpoints {
		if r.Checkpoints[i].Status != models.TrackingStatusCompleted {
			cp := r.Checkpoints[i]
			return &cp
		}
	}
	return nil
}

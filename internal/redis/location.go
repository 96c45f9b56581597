package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

const bayLocationKey = "bays:locations"

// BayStore keeps loading-bay coordinates in a Redis geo index and answers
// geofence proximity checks against it.
type BayStore struct {
	client *redis.Client
}

// NewBayStore creates a new BayStore.
func NewBayStore(client *redis.Client) *BayStore {
	return &BayStore{client: client}
}

// SetBayLocation stores a bay's coordinate using GEOADD.
func (s *BayStore) SetBayLocation(ctx context.Context, loc domain.BayLocation) error {
	return s.client.GeoAdd(ctx, bayLocationKey, &redis.GeoLocation{
		Name:      loc.BayID,
		Longitude: loc.Lng,
		Latitude:  loc.Lat,
	}).Err()
}

// GetBayLocation returns a bay's coordinate, or repository.ErrNotFound.
func (s *BayStore) GetBayLocation(ctx context.Context, bayID string) (*domain.BayLocation, error) {
	positions, err := s.client.GeoPos(ctx, bayLocationKey, bayID).Result()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return nil, repository.ErrNotFound
	}
	return &domain.BayLocation{
		BayID: bayID,
		Lat:   positions[0].Latitude,
		Lng:   positions[0].Longitude,
	}, nil
}

// WithinBay reports whether pos lies within radiusMeters of the bay.
// It returns repository.ErrNotFound for an unknown bay.
func (s *BayStore) WithinBay(ctx context.Context, bayID string, pos domain.Position, radiusMeters float64) (bool, error) {
	if _, err := s.GetBayLocation(ctx, bayID); err != nil {
		return false, err
	}

	members, err := s.client.GeoSearch(ctx, bayLocationKey, &redis.GeoSearchQuery{
		Longitude:  pos.Lng,
		Latitude:   pos.Lat,
		Radius:     radiusMeters,
		RadiusUnit: "m",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return false, err
	}

	for _, m := range members {
		if m == bayID {
			return true, nil
		}
	}
	return false, nil
}

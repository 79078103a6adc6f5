package redisclient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const pharmacyGeoKey = "geo:pharmacies"

// GeoHit is one pharmacy returned from a radius query, with the distance
// from the search point in kilometers.
type GeoHit struct {
	PharmacyID uuid.UUID
	Latitude   float64
	Longitude  float64
	DistanceKm float64
}

// GeoIndex is the geospatial lookup the pharmacy finder runs against.
type GeoIndex interface {
	Add(ctx context.Context, pharmacyID uuid.UUID, latitude, longitude float64) error
	Remove(ctx context.Context, pharmacyID uuid.UUID) error
	Nearby(ctx context.Context, latitude, longitude, radiusKm float64, limit int) ([]GeoHit, error)
}

type redisGeoIndex struct {
	client *redis.Client
}

func NewRedisGeoIndex(client *redis.Client) GeoIndex {
	return &redisGeoIndex{client: client}
}

func (g *redisGeoIndex) Add(ctx context.Context, pharmacyID uuid.UUID, latitude, longitude float64) error {
	err := g.client.GeoAdd(ctx, pharmacyGeoKey, &redis.GeoLocation{
		Name:      pharmacyID.String(),
		Latitude:  latitude,
		Longitude: longitude,
	}).Err()
	if err != nil {
		return fmt.Errorf("geoadd pharmacy %s: %w", pharmacyID, err)
	}
	return nil
}

func (g *redisGeoIndex) Remove(ctx context.Context, pharmacyID uuid.UUID) error {
	if err := g.client.ZRem(ctx, pharmacyGeoKey, pharmacyID.String()).Err(); err != nil {
		return fmt.Errorf("remove pharmacy %s from geo index: %w", pharmacyID, err)
	}
	return nil
}

func (g *redisGeoIndex) Nearby(ctx context.Context, latitude, longitude, radiusKm float64, limit int) ([]GeoHit, error) {
	locs, err := g.client.GeoSearchLocation(ctx, pharmacyGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  longitude,
			Latitude:   latitude,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geosearch pharmacies: %w", err)
	}

	hits := make([]GeoHit, 0, len(locs))
	for _, loc := range locs {
		id, err := uuid.Parse(loc.Name)
		if err != nil {
			// Stale non-UUID member, skip
			continue
		}
		hits = append(hits, GeoHit{
			PharmacyID: id,
			Latitude:   loc.Latitude,
			Longitude:  loc.Longitude,
			DistanceKm: loc.Dist,
		})
	}

	return hits, nil
}

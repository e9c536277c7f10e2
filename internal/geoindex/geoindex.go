// Package geoindex keeps an R-Tree over the current locations for map lookups.
package geoindex

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/Zachdehooge/flood-dashboard/internal/fetcher"
)

const (
	tolerance   = 0.0001
	minChildren = 2
	maxChildren = 8
	dimensions  = 2
	earthRadius = 6371.0 // km
)

// spatialLocation wraps a Location for R-Tree indexing
type spatialLocation struct {
	loc  fetcher.Location
	rect *rtreego.Rect
}

func (s *spatialLocation) Bounds() *rtreego.Rect {
	return s.rect
}

// Box is a lat/lon bounding box.
type Box struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

// Index is a thread-safe spatial index that is rebuilt wholesale on every refresh.
type Index struct {
	mu   sync.RWMutex
	tree *rtreego.Rtree
	size int
}

// New creates an empty index.
func New() *Index {
	return &Index{tree: rtreego.NewTree(dimensions, minChildren, maxChildren)}
}

// Reset replaces the indexed set with locations.
func (x *Index) Reset(locations []fetcher.Location) {
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	for _, loc := range locations {
		tree.Insert(&spatialLocation{
			loc:  loc,
			rect: rtreego.Point{loc.Lat, loc.Lon}.ToRect(tolerance),
		})
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.tree = tree
	x.size = len(locations)
}

// Size returns the number of indexed locations.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.size
}

// Nearest returns up to k locations ordered by great-circle distance from (lat, lon).
func (x *Index) Nearest(lat, lon float64, k int) []fetcher.Location {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 || x.size == 0 {
		return []fetcher.Location{}
	}
	if k > x.size {
		k = x.size
	}

	results := x.tree.NearestNeighbors(k, rtreego.Point{lat, lon})
	locations := make([]fetcher.Location, 0, len(results))
	for _, r := range results {
		item, ok := r.(*spatialLocation)
		if !ok || item == nil {
			continue
		}
		locations = append(locations, item.loc)
	}
	sort.SliceStable(locations, func(i, j int) bool {
		return Distance(lat, lon, locations[i].Lat, locations[i].Lon) <
			Distance(lat, lon, locations[j].Lat, locations[j].Lon)
	})
	return locations
}

// Within returns the locations inside box.
func (x *Index) Within(box Box) ([]fetcher.Location, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	bounds, err := rtreego.NewRect(
		rtreego.Point{box.MinLat, box.MinLon},
		[]float64{box.MaxLat - box.MinLat, box.MaxLon - box.MinLon},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}

	results := x.tree.SearchIntersect(bounds)
	locations := make([]fetcher.Location, 0, len(results))
	for _, r := range results {
		item, ok := r.(*spatialLocation)
		if !ok {
			continue
		}
		l := item.loc
		if l.Lat >= box.MinLat && l.Lat <= box.MaxLat && l.Lon >= box.MinLon && l.Lon <= box.MaxLon {
			locations = append(locations, l)
		}
	}
	return locations, nil
}

// Distance is the haversine distance in kilometres.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Package mapitem holds the value types shared by the map resolver, the query
// interface, and the client-side viewport and marker components.
package mapitem

import (
	"errors"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// EventRecord is the read-only projection of an event used on the map.
type EventRecord struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	IsEditorsChoice bool      `json:"isEditorsChoice"`
	CategoryID      *string   `json:"categoryId,omitempty"`
	OnlineEvent     bool      `json:"onlineEvent"`
	VenueID         *string   `json:"venueId,omitempty"`
	VenueName       *string   `json:"venueName,omitempty"`
	Address         *string   `json:"address,omitempty"`
	City            *string   `json:"city,omitempty"`
}

// Located reports whether the event carries both coordinates.
func (e EventRecord) Located() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// ErrInvalidBoundingBox is returned for boxes whose minimums exceed their maximums
// or whose coordinates are outside WGS-84 ranges.
var ErrInvalidBoundingBox = errors.New("invalid bounding box")

// BoundingBox is a lat/lng rectangle. Antimeridian wraparound is not handled.
type BoundingBox struct {
	MinLat float64 `json:"minLat" validate:"gte=-90,lte=90"`
	MaxLat float64 `json:"maxLat" validate:"gte=-90,lte=90"`
	MinLng float64 `json:"minLng" validate:"gte=-180,lte=180"`
	MaxLng float64 `json:"maxLng" validate:"gte=-180,lte=180"`
}

// Validate checks ordering and ranges.
func (b BoundingBox) Validate() error {
	if !ValidCoordinate(b.MinLat, b.MinLng) || !ValidCoordinate(b.MaxLat, b.MaxLng) {
		return ErrInvalidBoundingBox
	}
	if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
		return ErrInvalidBoundingBox
	}
	return nil
}

// Bound converts the box to an orb bound (x = lng, y = lat).
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLng, b.MinLat},
		Max: orb.Point{b.MaxLng, b.MaxLat},
	}
}

// FromBound converts an orb bound back to a box.
func FromBound(b orb.Bound) BoundingBox {
	return BoundingBox{
		MinLat: b.Min.Lat(),
		MaxLat: b.Max.Lat(),
		MinLng: b.Min.Lon(),
		MaxLng: b.Max.Lon(),
	}
}

// Contains reports whether the coordinate lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Intersect returns the overlap of two boxes and false when they are disjoint.
func (b BoundingBox) Intersect(o BoundingBox) (BoundingBox, bool) {
	out := BoundingBox{
		MinLat: math.Max(b.MinLat, o.MinLat),
		MaxLat: math.Min(b.MaxLat, o.MaxLat),
		MinLng: math.Max(b.MinLng, o.MinLng),
		MaxLng: math.Min(b.MaxLng, o.MaxLng),
	}
	if out.MinLat > out.MaxLat || out.MinLng > out.MaxLng {
		return BoundingBox{}, false
	}
	return out, true
}

// ValidCoordinate reports whether lat/lng are finite and inside WGS-84 ranges.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Kind tags an Item as a point or a cluster.
type Kind string

const (
	KindPoint   Kind = "point"
	KindCluster Kind = "cluster"
)

// Item is one entry of a map response: either a Point carrying its event or a
// Cluster carrying a count and, for small clusters, the member events.
type Item struct {
	Type   Kind          `json:"type"`
	ID     string        `json:"id"`
	Lat    float64       `json:"lat"`
	Lng    float64       `json:"lng"`
	Event  *EventRecord  `json:"event,omitempty"`
	Count  int           `json:"count,omitempty"`
	Events []EventRecord `json:"events,omitempty"`
}

// NewPoint builds a point item for a single event.
func NewPoint(ev EventRecord, lat, lng float64) Item {
	e := ev
	return Item{Type: KindPoint, ID: ev.ID, Lat: lat, Lng: lng, Event: &e}
}

// NewCluster builds a cluster item. events may be nil for clusters too large
// to enumerate.
func NewCluster(id string, lat, lng float64, count int, events []EventRecord) Item {
	return Item{Type: KindCluster, ID: id, Lat: lat, Lng: lng, Count: count, Events: events}
}

func (it Item) IsCluster() bool { return it.Type == KindCluster }

// Enumerable reports whether a cluster carries its member events.
func (it Item) Enumerable() bool { return it.IsCluster() && len(it.Events) > 0 }

// Position returns the item's coordinate as an orb point.
func (it Item) Position() orb.Point { return orb.Point{it.Lng, it.Lat} }

// Response is the JSON body of the map query interface.
type Response struct {
	Items []Item `json:"items"`
}

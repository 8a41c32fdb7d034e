// Package spatial resolves a viewport, zoom and filter set into map items:
// individual points, or clusters of events that share a grid cell.
package spatial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/rs/zerolog"

	"eventmap/core-go/internal/mapitem"
	"eventmap/core-go/internal/metrics"
	"eventmap/core-go/internal/sqlcgen"
)

const (
	DefaultCellBase       = 40.0
	DefaultMinZoom        = 3
	DefaultMaxZoom        = 20
	DefaultEnumerateLimit = 25
)

// EventStore is the store capability the resolver needs.
//
// *sqlcgen.Queries satisfies this.
type EventStore interface {
	ListMapEvents(ctx context.Context, arg sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error)
}

// Options tunes the resolver. Zero values select the Default* constants.
type Options struct {
	CellBase       float64
	MinZoom        int
	MaxZoom        int
	EnumerateLimit int
	Now            func() time.Time
}

type Resolver struct {
	log     zerolog.Logger
	store   EventStore
	grid    Grid
	now     func() time.Time
	metrics *metrics.Metrics
}

func NewResolver(log zerolog.Logger, store EventStore, opts Options, m *metrics.Metrics) *Resolver {
	cellBase := opts.CellBase
	if cellBase <= 0 {
		cellBase = DefaultCellBase
	}
	minZoom := opts.MinZoom
	if minZoom <= 0 {
		minZoom = DefaultMinZoom
	}
	maxZoom := opts.MaxZoom
	if maxZoom <= 0 {
		maxZoom = DefaultMaxZoom
	}
	if maxZoom < minZoom {
		maxZoom = minZoom
	}
	limit := opts.EnumerateLimit
	if limit <= 0 {
		limit = DefaultEnumerateLimit
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Resolver{
		log:     log,
		store:   store,
		grid:    Grid{CellBase: cellBase, MinZoom: minZoom, MaxZoom: maxZoom, EnumerateLimit: limit},
		now:     now,
		metrics: m,
	}
}

// Resolve returns the map items for the viewport. bbox may be nil to query
// without a viewport restriction. A store failure is returned as an error and
// no items are returned with it.
func (r *Resolver) Resolve(ctx context.Context, bbox *mapitem.BoundingBox, zoom int, f mapitem.Filters) ([]mapitem.Item, error) {
	start := time.Now()

	if bbox != nil {
		if err := bbox.Validate(); err != nil {
			return nil, err
		}
	}

	storeBox := bbox
	var center orb.Point
	var radiusM float64
	if f.Near != nil {
		center = orb.Point{f.Near.Lng, f.Near.Lat}
		radiusM = f.Near.KM * 1000
		around := mapitem.FromBound(geo.NewBoundAroundPoint(center, radiusM))
		if storeBox != nil {
			overlap, ok := storeBox.Intersect(around)
			if !ok {
				r.metrics.ObserveResolve(time.Since(start), 0, 0)
				return []mapitem.Item{}, nil
			}
			storeBox = &overlap
		} else {
			storeBox = &around
		}
	}

	rows, err := r.store.ListMapEvents(ctx, r.params(storeBox, f))
	if err != nil {
		r.metrics.IncResolveFailure()
		return nil, fmt.Errorf("list map events: %w", err)
	}

	events := make([]mapitem.EventRecord, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		ev := eventFromRow(row)
		if !ev.Located() || !mapitem.ValidCoordinate(*ev.Latitude, *ev.Longitude) {
			skipped++
			continue
		}
		if storeBox != nil && !storeBox.Contains(*ev.Latitude, *ev.Longitude) {
			continue
		}
		if f.Near != nil && geo.DistanceHaversine(center, orb.Point{*ev.Longitude, *ev.Latitude}) > radiusM {
			continue
		}
		events = append(events, ev)
	}

	items := r.grid.Cluster(events, zoom)

	points, clusters := 0, 0
	for _, it := range items {
		if it.IsCluster() {
			clusters++
		} else {
			points++
		}
	}
	r.metrics.ObserveResolve(time.Since(start), points, clusters)
	r.log.Debug().
		Int("zoom", zoom).
		Int("events", len(events)).
		Int("skipped", skipped).
		Int("points", points).
		Int("clusters", clusters).
		Msg("map_resolve")

	return items, nil
}

func (r *Resolver) params(box *mapitem.BoundingBox, f mapitem.Filters) sqlcgen.ListMapEventsParams {
	f = f.Normalize()
	p := sqlcgen.ListMapEventsParams{
		DateStart:         f.DateStart,
		DateEnd:           f.DateEnd,
		Now:               r.now().UTC(),
		Categories:        f.Categories,
		Tags:              f.Tags,
		Venues:            f.Venues,
		OnlineOnly:        f.OnlineOnly,
		EditorsChoiceOnly: f.EditorsChoiceOnly,
	}
	if term := strings.TrimSpace(f.SearchTerm); term != "" {
		pattern := "%" + likeEscaper.Replace(term) + "%"
		p.SearchPattern = &pattern
	}
	if box != nil {
		p.MinLat, p.MaxLat = &box.MinLat, &box.MaxLat
		p.MinLng, p.MaxLng = &box.MinLng, &box.MaxLng
	}
	return p
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func eventFromRow(row sqlcgen.MapEvent) mapitem.EventRecord {
	return mapitem.EventRecord{
		ID:              row.ID,
		Title:           row.Title,
		StartDate:       row.StartDate,
		EndDate:         row.EndDate,
		Latitude:        row.Lat,
		Longitude:       row.Lng,
		IsEditorsChoice: row.IsEditorsChoice,
		CategoryID:      row.CategoryID,
		OnlineEvent:     row.OnlineEvent,
		VenueID:         row.VenueID,
		VenueName:       row.VenueName,
		Address:         row.Address,
		City:            row.City,
	}
}

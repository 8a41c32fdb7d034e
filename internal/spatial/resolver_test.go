package spatial

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"eventmap/core-go/internal/mapitem"
	"eventmap/core-go/internal/sqlcgen"
)

type fakeEventStore struct {
	listFn func(ctx context.Context, arg sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error)
}

func (f fakeEventStore) ListMapEvents(ctx context.Context, arg sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error) {
	return f.listFn(ctx, arg)
}

func staticStore(rows ...sqlcgen.MapEvent) fakeEventStore {
	return fakeEventStore{listFn: func(context.Context, sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error) {
		return rows, nil
	}}
}

func row(id string, lat, lng float64) sqlcgen.MapEvent {
	return sqlcgen.MapEvent{ID: id, Title: "event " + id, Lat: &lat, Lng: &lng}
}

var vienna = &mapitem.BoundingBox{MinLat: 48.0, MaxLat: 49.0, MinLng: 16.0, MaxLng: 17.0}

func TestResolve_ScenarioClusterAndPoint(t *testing.T) {
	// 51.2 / 2^10 = 0.05 degrees per cell.
	r := NewResolver(zerolog.Nop(), staticStore(
		row("a", 48.20, 16.37),
		row("b", 48.21, 16.38),
		row("c", 48.90, 16.40),
	), Options{CellBase: 51.2}, nil)

	items, err := r.Resolve(context.Background(), vienna, 10, mapitem.Filters{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}

	cluster, point := items[0], items[1]
	if !cluster.IsCluster() || cluster.Count != 2 {
		t.Fatalf("expected first item to be a cluster of 2, got %+v", cluster)
	}
	if len(cluster.Events) != 2 || cluster.Events[0].ID != "a" || cluster.Events[1].ID != "b" {
		t.Fatalf("expected enumerated members a,b, got %+v", cluster.Events)
	}
	if diff := cluster.Lat - 48.205; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected centroid lat 48.205, got %v", cluster.Lat)
	}
	if diff := cluster.Lng - 16.375; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected centroid lng 16.375, got %v", cluster.Lng)
	}
	if point.IsCluster() || point.ID != "c" || point.Event == nil || point.Lat != 48.90 {
		t.Fatalf("expected point c, got %+v", point)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	rows := []sqlcgen.MapEvent{
		row("a", 48.20, 16.37), row("b", 48.21, 16.38), row("c", 48.22, 16.36),
		row("d", 48.50, 16.70), row("e", 48.51, 16.71),
	}
	reversed := make([]sqlcgen.MapEvent, len(rows))
	for i := range rows {
		reversed[len(rows)-1-i] = rows[i]
	}

	first, err := NewResolver(zerolog.Nop(), staticStore(rows...), Options{}, nil).Resolve(context.Background(), vienna, 9, mapitem.Filters{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := NewResolver(zerolog.Nop(), staticStore(reversed...), Options{}, nil).Resolve(context.Background(), vienna, 9, mapitem.Filters{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected same item count, got %d and %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.ID != b.ID || a.Lat != b.Lat || a.Lng != b.Lng || a.Count != b.Count {
			t.Fatalf("item %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestResolve_ExcludesNullCoordinates(t *testing.T) {
	lat := 48.2
	r := NewResolver(zerolog.Nop(), staticStore(
		row("a", 48.2, 16.37),
		sqlcgen.MapEvent{ID: "nolng", Lat: &lat},
		sqlcgen.MapEvent{ID: "none"},
	), Options{}, nil)

	items, err := r.Resolve(context.Background(), nil, 3, mapitem.Filters{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a" {
		t.Fatalf("expected only the located event, got %+v", items)
	}
}

func TestResolve_EmptyIsNotAnError(t *testing.T) {
	r := NewResolver(zerolog.Nop(), staticStore(), Options{}, nil)
	items, err := r.Resolve(context.Background(), vienna, 12, mapitem.Filters{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}
}

func TestResolve_ZeroSizeBox(t *testing.T) {
	r := NewResolver(zerolog.Nop(), staticStore(row("a", 48.2, 16.37), row("b", 48.3, 16.37)), Options{}, nil)
	box := &mapitem.BoundingBox{MinLat: 48.2, MaxLat: 48.2, MinLng: 16.37, MaxLng: 16.37}
	items, err := r.Resolve(context.Background(), box, 20, mapitem.Filters{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a" {
		t.Fatalf("expected the single event on the degenerate box, got %+v", items)
	}
}

func TestResolve_StoreErrorReturnsNoItems(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewResolver(zerolog.Nop(), fakeEventStore{listFn: func(context.Context, sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error) {
		return []sqlcgen.MapEvent{row("a", 48.2, 16.37)}, boom
	}}, Options{}, nil)

	items, err := r.Resolve(context.Background(), vienna, 12, mapitem.Filters{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if items != nil {
		t.Fatalf("expected no partial results, got %+v", items)
	}
}

func TestResolve_InvalidBoundingBox(t *testing.T) {
	called := false
	r := NewResolver(zerolog.Nop(), fakeEventStore{listFn: func(context.Context, sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error) {
		called = true
		return nil, nil
	}}, Options{}, nil)

	_, err := r.Resolve(context.Background(), &mapitem.BoundingBox{MinLat: 49, MaxLat: 48, MinLng: 16, MaxLng: 17}, 12, mapitem.Filters{})
	if !errors.Is(err, mapitem.ErrInvalidBoundingBox) {
		t.Fatalf("expected ErrInvalidBoundingBox, got %v", err)
	}
	if called {
		t.Fatalf("expected store not to be queried")
	}
}

func TestResolve_RadiusFilter(t *testing.T) {
	var got sqlcgen.ListMapEventsParams
	r := NewResolver(zerolog.Nop(), fakeEventStore{listFn: func(_ context.Context, arg sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error) {
		got = arg
		return []sqlcgen.MapEvent{
			row("center", 48.2082, 16.3738),
			// Inside the prefilter square but outside the circle.
			row("corner", 48.2082+0.0170, 16.3738+0.0255),
		}, nil
	}}, Options{}, nil)

	near := &mapitem.Radius{Lat: 48.2082, Lng: 16.3738, KM: 2}
	items, err := r.Resolve(context.Background(), vienna, 20, mapitem.Filters{Near: near})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(items) != 1 || items[0].ID != "center" {
		t.Fatalf("expected only the event inside the radius, got %+v", items)
	}
	if got.MinLat == nil || *got.MinLat <= vienna.MinLat || *got.MaxLat >= vienna.MaxLat {
		t.Fatalf("expected store bbox narrowed to the radius, got %v..%v", got.MinLat, got.MaxLat)
	}
}

func TestResolve_RadiusOutsideViewport(t *testing.T) {
	called := false
	r := NewResolver(zerolog.Nop(), fakeEventStore{listFn: func(context.Context, sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error) {
		called = true
		return nil, nil
	}}, Options{}, nil)

	items, err := r.Resolve(context.Background(), vienna, 12, mapitem.Filters{Near: &mapitem.Radius{Lat: 52.52, Lng: 13.40, KM: 5}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(items) != 0 || called {
		t.Fatalf("expected empty result without a store call, got %+v (called=%v)", items, called)
	}
}

func TestResolve_FilterParams(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var got sqlcgen.ListMapEventsParams
	r := NewResolver(zerolog.Nop(), fakeEventStore{listFn: func(_ context.Context, arg sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error) {
		got = arg
		return nil, nil
	}}, Options{Now: func() time.Time { return now }}, nil)

	_, err := r.Resolve(context.Background(), nil, 12, mapitem.Filters{
		SearchTerm:        "50%_off",
		Categories:        []string{"music", "art", "music"},
		Tags:              []string{"Free"},
		OnlineOnly:        true,
		EditorsChoiceOnly: true,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.SearchPattern == nil || *got.SearchPattern != `%50\%\_off%` {
		t.Fatalf("expected escaped search pattern, got %v", got.SearchPattern)
	}
	if len(got.Categories) != 2 || got.Categories[0] != "art" {
		t.Fatalf("expected normalized categories, got %v", got.Categories)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "free" {
		t.Fatalf("expected normalized tags, got %v", got.Tags)
	}
	if !got.OnlineOnly || !got.EditorsChoiceOnly || !got.Now.Equal(now) {
		t.Fatalf("unexpected params %+v", got)
	}
	if got.MinLat != nil || got.Venues != nil {
		t.Fatalf("expected no bbox and no venue predicate, got %+v", got)
	}
}

func TestResolve_LargeClusterNotEnumerated(t *testing.T) {
	var rows []sqlcgen.MapEvent
	for i := 0; i < DefaultEnumerateLimit; i++ {
		rows = append(rows, row(fmt.Sprintf("e%02d", i), 48.2+float64(i)*1e-5, 16.37))
	}
	r := NewResolver(zerolog.Nop(), staticStore(rows...), Options{}, nil)

	items, err := r.Resolve(context.Background(), vienna, 12, mapitem.Filters{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(items) != 1 || items[0].Count != DefaultEnumerateLimit {
		t.Fatalf("expected a single cluster of %d, got %+v", DefaultEnumerateLimit, items)
	}
	if items[0].Events != nil {
		t.Fatalf("expected large cluster to carry only its count")
	}
}

package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"eventmap/core-go/internal/mapitem"
	"eventmap/core-go/internal/spatial"
	"eventmap/core-go/internal/sqlcgen"
)

type fakeEventStore struct {
	listFn func(ctx context.Context, arg sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error)
}

func (f fakeEventStore) ListMapEvents(ctx context.Context, arg sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error) {
	return f.listFn(ctx, arg)
}

func mapEvent(id string, lat, lng float64) sqlcgen.MapEvent {
	return sqlcgen.MapEvent{
		ID:        id,
		Title:     "event " + id,
		StartDate: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 5, 1, 23, 0, 0, 0, time.UTC),
		Lat:       &lat,
		Lng:       &lng,
	}
}

func newMapHandler(rows ...sqlcgen.MapEvent) *Handler {
	h := NewHandler(NewLogger("error"), nil, Options{})
	h.resolver = spatial.NewResolver(zerolog.Nop(), fakeEventStore{
		listFn: func(context.Context, sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error) {
			return rows, nil
		},
	}, spatial.Options{CellBase: 51.2}, nil)
	return h
}

func TestEventMap_ReturnsClusterAndPoint(t *testing.T) {
	h := newMapHandler(
		mapEvent("a", 48.20, 16.37),
		mapEvent("b", 48.21, 16.38),
		mapEvent("c", 48.90, 16.40),
	)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/map?zoom=10&minLat=48&maxLat=49&minLng=16&maxLng=17", nil)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected Cache-Control no-store, got %q", got)
	}

	body := decodeBody(t, rr)
	items, ok := body["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 items, got %v", body["items"])
	}
	cluster := items[0].(map[string]any)
	if cluster["type"] != "cluster" || cluster["count"] != float64(2) {
		t.Fatalf("expected cluster of 2 first, got %v", cluster)
	}
	if events, ok := cluster["events"].([]any); !ok || len(events) != 2 {
		t.Fatalf("expected enumerated cluster events, got %v", cluster["events"])
	}
	point := items[1].(map[string]any)
	if point["type"] != "point" || point["id"] != "c" {
		t.Fatalf("expected point c, got %v", point)
	}
	ev, ok := point["event"].(map[string]any)
	if !ok || ev["title"] != "event c" {
		t.Fatalf("expected embedded event, got %v", point["event"])
	}
}

func TestEventMap_EmptyResultIsEmptyArray(t *testing.T) {
	h := newMapHandler()

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/map?zoom=12", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if items, ok := body["items"].([]any); !ok || len(items) != 0 {
		t.Fatalf("expected empty items array, got %T %v", body["items"], body["items"])
	}
}

func TestEventMap_GeoJSON(t *testing.T) {
	h := newMapHandler(mapEvent("a", 48.20, 16.37))

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/map?zoom=12&format=geojson", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["type"] != "FeatureCollection" {
		t.Fatalf("expected FeatureCollection, got %v", body["type"])
	}
	features := body["features"].([]any)
	if len(features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(features))
	}
	geom := features[0].(map[string]any)["geometry"].(map[string]any)
	coords := geom["coordinates"].([]any)
	if geom["type"] != "Point" || coords[0] != 16.37 || coords[1] != 48.2 {
		t.Fatalf("expected lng/lat point geometry, got %v", geom)
	}
}

func TestEventMap_ForwardsFilters(t *testing.T) {
	h := NewHandler(NewLogger("error"), nil, Options{})
	var gotBBox *mapitem.BoundingBox
	var gotZoom int
	var gotFilters mapitem.Filters
	h.resolver = fakeResolver{resolveFn: func(_ context.Context, bbox *mapitem.BoundingBox, zoom int, f mapitem.Filters) ([]mapitem.Item, error) {
		gotBBox, gotZoom, gotFilters = bbox, zoom, f
		return nil, nil
	}}

	rr := httptest.NewRecorder()
	url := "/api/v1/events/map?zoom=14&minLat=48.1&maxLat=48.3&minLng=16.2&maxLng=16.5" +
		"&searchTerm=jazz&categories=music,art&tags=free&onlineOnly=true&editorsChoiceOnly=false" +
		"&dateRangeStart=2026-05-01T00:00:00Z&venues=00000000-0000-0000-0000-000000000001"
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, url, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotZoom != 14 || gotBBox == nil || gotBBox.MaxLng != 16.5 {
		t.Fatalf("unexpected zoom/bbox %d %+v", gotZoom, gotBBox)
	}
	if gotFilters.SearchTerm != "jazz" || len(gotFilters.Categories) != 2 || !gotFilters.OnlineOnly || gotFilters.EditorsChoiceOnly {
		t.Fatalf("unexpected filters %+v", gotFilters)
	}
	if gotFilters.DateStart == nil || gotFilters.DateEnd != nil || len(gotFilters.Venues) != 1 {
		t.Fatalf("unexpected date/venue filters %+v", gotFilters)
	}
}

func TestEventMap_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"missing zoom":      "/api/v1/events/map",
		"zoom not integer":  "/api/v1/events/map?zoom=abc",
		"zoom out of range": "/api/v1/events/map?zoom=40",
		"partial bbox":      "/api/v1/events/map?zoom=12&minLat=48",
		"inverted bbox":     "/api/v1/events/map?zoom=12&minLat=49&maxLat=48&minLng=16&maxLng=17",
		"lat out of range":  "/api/v1/events/map?zoom=12&minLat=-100&maxLat=48&minLng=16&maxLng=17",
		"bad venue id":      "/api/v1/events/map?zoom=12&venues=not-a-uuid",
		"bad radius":        "/api/v1/events/map?zoom=12&nearLat=48.2&nearLng=16.3&radiusKm=0",
		"bad date":          "/api/v1/events/map?zoom=12&dateRangeEnd=soon",
		"bad format":        "/api/v1/events/map?zoom=12&format=kml",
	}
	for name, url := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewHandler(NewLogger("error"), nil, Options{})
			h.resolver = fakeResolver{resolveFn: func(context.Context, *mapitem.BoundingBox, int, mapitem.Filters) ([]mapitem.Item, error) {
				t.Fatalf("resolver must not be called for invalid input")
				return nil, nil
			}}

			rr := httptest.NewRecorder()
			h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, url, nil))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if code := errorCode(t, rr); code != "validation_failed" {
				t.Fatalf("expected validation_failed, got %q", code)
			}
		})
	}
}

func TestEventMap_DBUnavailable_Returns503(t *testing.T) {
	h := NewHandler(NewLogger("error"), nil, Options{})

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/map?zoom=12", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "db_unavailable" {
		t.Fatalf("expected db_unavailable, got %q", code)
	}
}

func TestEventMap_StoreError_Returns500WithoutItems(t *testing.T) {
	h := NewHandler(NewLogger("error"), nil, Options{})
	h.resolver = spatial.NewResolver(zerolog.Nop(), fakeEventStore{
		listFn: func(context.Context, sqlcgen.ListMapEventsParams) ([]sqlcgen.MapEvent, error) {
			return nil, errors.New("connection refused")
		},
	}, spatial.Options{}, nil)

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/map?zoom=12", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if _, ok := body["items"]; ok {
		t.Fatalf("expected no items in error response, got %v", body)
	}
	if code := errorCode(t, rr); code != "db_error" {
		t.Fatalf("expected db_error, got %q", code)
	}
}

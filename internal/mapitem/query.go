package mapitem

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"eventmap/core-go/internal/tagging"
)

// Query is one request against the map query interface.
type Query struct {
	Zoom    int          `validate:"gte=0,lte=22"`
	BBox    *BoundingBox `validate:"omitempty"`
	Filters Filters
}

// FieldError reports a query parameter that could not be parsed.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Values encodes the query using the wire parameter names.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("zoom", strconv.Itoa(q.Zoom))
	if q.BBox != nil {
		v.Set("minLat", formatFloat(q.BBox.MinLat))
		v.Set("maxLat", formatFloat(q.BBox.MaxLat))
		v.Set("minLng", formatFloat(q.BBox.MinLng))
		v.Set("maxLng", formatFloat(q.BBox.MaxLng))
	}

	f := q.Filters
	if f.SearchTerm != "" {
		v.Set("searchTerm", f.SearchTerm)
	}
	if len(f.Categories) > 0 {
		v.Set("categories", strings.Join(f.Categories, ","))
	}
	if len(f.Tags) > 0 {
		v.Set("tags", strings.Join(f.Tags, ","))
	}
	if f.DateStart != nil {
		v.Set("dateRangeStart", f.DateStart.UTC().Format(time.RFC3339Nano))
	}
	if f.DateEnd != nil {
		v.Set("dateRangeEnd", f.DateEnd.UTC().Format(time.RFC3339Nano))
	}
	if f.OnlineOnly {
		v.Set("onlineOnly", "true")
	}
	if f.EditorsChoiceOnly {
		v.Set("editorsChoiceOnly", "true")
	}
	if len(f.Venues) > 0 {
		v.Set("venues", strings.Join(f.Venues, ","))
	}
	if f.Near != nil {
		v.Set("nearLat", formatFloat(f.Near.Lat))
		v.Set("nearLng", formatFloat(f.Near.Lng))
		v.Set("radiusKm", formatFloat(f.Near.KM))
	}
	return v
}

// ParseQuery decodes wire parameters. Range checks are left to the caller's
// validator; this only rejects values that cannot be parsed at all.
func ParseQuery(v url.Values) (Query, error) {
	var q Query

	zoomRaw := strings.TrimSpace(v.Get("zoom"))
	if zoomRaw == "" {
		return Query{}, &FieldError{Field: "zoom", Reason: "required"}
	}
	zoom, err := strconv.Atoi(zoomRaw)
	if err != nil {
		return Query{}, &FieldError{Field: "zoom", Reason: "must be an integer"}
	}
	q.Zoom = zoom

	bbox, err := parseFloatGroup(v, "minLat", "maxLat", "minLng", "maxLng")
	if err != nil {
		return Query{}, err
	}
	if bbox != nil {
		q.BBox = &BoundingBox{MinLat: bbox[0], MaxLat: bbox[1], MinLng: bbox[2], MaxLng: bbox[3]}
	}

	near, err := parseFloatGroup(v, "nearLat", "nearLng", "radiusKm")
	if err != nil {
		return Query{}, err
	}
	if near != nil {
		q.Filters.Near = &Radius{Lat: near[0], Lng: near[1], KM: near[2]}
	}

	q.Filters.SearchTerm = strings.Join(strings.Fields(v.Get("searchTerm")), " ")
	q.Filters.Categories = tagging.SplitList(v.Get("categories"))
	q.Filters.Tags = tagging.SplitList(v.Get("tags"))
	q.Filters.Venues = tagging.SplitList(v.Get("venues"))

	if q.Filters.DateStart, err = parseTimeParam(v, "dateRangeStart"); err != nil {
		return Query{}, err
	}
	if q.Filters.DateEnd, err = parseTimeParam(v, "dateRangeEnd"); err != nil {
		return Query{}, err
	}
	if q.Filters.OnlineOnly, err = parseBoolParam(v, "onlineOnly"); err != nil {
		return Query{}, err
	}
	if q.Filters.EditorsChoiceOnly, err = parseBoolParam(v, "editorsChoiceOnly"); err != nil {
		return Query{}, err
	}

	q.Filters = q.Filters.Normalize()
	return q, nil
}

// parseFloatGroup parses parameters that must be given together. It returns
// nil when none of them is present.
func parseFloatGroup(v url.Values, names ...string) ([]float64, error) {
	present := 0
	for _, n := range names {
		if strings.TrimSpace(v.Get(n)) != "" {
			present++
		}
	}
	if present == 0 {
		return nil, nil
	}
	if present != len(names) {
		return nil, &FieldError{Field: strings.Join(names, ","), Reason: "must be provided together"}
	}
	out := make([]float64, 0, len(names))
	for _, n := range names {
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Get(n)), 64)
		if err != nil {
			return nil, &FieldError{Field: n, Reason: "must be a number"}
		}
		out = append(out, f)
	}
	return out, nil
}

func parseTimeParam(v url.Values, name string) (*time.Time, error) {
	raw := strings.TrimSpace(v.Get(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &FieldError{Field: name, Reason: "must be an ISO-8601 timestamp"}
}

func parseBoolParam(v url.Values, name string) (bool, error) {
	raw := strings.TrimSpace(v.Get(name))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &FieldError{Field: name, Reason: "must be a boolean"}
	}
	return b, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb/geojson"

	"eventmap/core-go/internal/mapitem"
)

var validate = validator.New()

func (h *Handler) handleGetEventMap(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	format := strings.ToLower(strings.TrimSpace(params.Get("format")))
	if format != "" && format != "json" && format != "geojson" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid format", map[string]any{"format": format})
		return
	}

	q, err := mapitem.ParseQuery(params)
	if err != nil {
		var fe *mapitem.FieldError
		if errors.As(err, &fe) {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid query parameter", map[string]any{"field": fe.Field, "reason": fe.Reason})
			return
		}
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid query", map[string]any{"error": err.Error()})
		return
	}

	if err := validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]any, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			h.writeError(w, http.StatusBadRequest, "validation_failed", "query parameter out of range", map[string]any{"fields": fields})
			return
		}
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid query", map[string]any{"error": err.Error()})
		return
	}

	if q.BBox != nil {
		if err := q.BBox.Validate(); err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "minLat/minLng must not exceed maxLat/maxLng", nil)
			return
		}
	}

	if !h.ensureResolver(w) {
		return
	}

	items, err := h.resolver.Resolve(r.Context(), q.BBox, q.Zoom, q.Filters)
	if err != nil {
		h.log.Error().Err(err).Int("zoom", q.Zoom).Msg("map resolve failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to resolve map items", nil)
		return
	}
	if items == nil {
		items = []mapitem.Item{}
	}

	w.Header().Set("Cache-Control", "no-store")
	if format == "geojson" {
		h.writeJSON(w, http.StatusOK, toFeatureCollection(items))
		return
	}
	h.writeJSON(w, http.StatusOK, mapitem.Response{Items: items})
}

// toFeatureCollection renders items as one Point feature each. Properties
// mirror the JSON item fields other than the coordinates.
func toFeatureCollection(items []mapitem.Item) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, it := range items {
		f := geojson.NewFeature(it.Position())
		f.ID = it.ID
		f.Properties["type"] = string(it.Type)
		f.Properties["id"] = it.ID
		if it.IsCluster() {
			f.Properties["count"] = it.Count
			if len(it.Events) > 0 {
				f.Properties["events"] = it.Events
			}
		} else if it.Event != nil {
			f.Properties["event"] = it.Event
		}
		fc.Append(f)
	}
	return fc
}

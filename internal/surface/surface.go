// Package surface describes the capabilities the map client needs from an
// interactive map widget, and provides a headless in-memory implementation.
package surface

import (
	"eventmap/core-go/internal/mapitem"
	"eventmap/core-go/internal/markerstyle"
)

// Map zoom bounds and defaults of the events map.
const (
	MinZoom     = 3
	MaxZoom     = 20
	DefaultZoom = 12
)

// DefaultCenter is the initial map center (Vienna).
var DefaultCenter = LatLng{Lat: 48.2082, Lng: 16.3738}

type LatLng struct {
	Lat float64
	Lng float64
}

// Phase is the visual lifecycle phase of a marker element.
type Phase string

const (
	PhaseEntering Phase = "entering"
	PhaseVisible  Phase = "visible"
	PhaseExiting  Phase = "exiting"
)

// MarkerSpec describes a marker to create.
type MarkerSpec struct {
	ID       string
	Position LatLng
	Style    markerstyle.Style
	Phase    Phase
}

// Marker is a live marker hosted by the map.
type Marker interface {
	SetPosition(p LatLng)
	SetZIndex(z int)
	SetContent(s markerstyle.Style)
	SetPhase(p Phase)
	// OnClick replaces the click handler.
	OnClick(fn func())
	Remove()
}

// Map is the map widget capability set.
type Map interface {
	Zoom() int
	// Bounds returns false until the map has been laid out.
	Bounds() (mapitem.BoundingBox, bool)
	// OnIdle registers fn for the event fired after user interaction settles.
	OnIdle(fn func()) (detach func())
	// OnBackgroundClick registers fn for clicks on the map outside any marker.
	OnBackgroundClick(fn func()) (detach func())
	PanTo(p LatLng)
	SetZoom(z int)
	AddMarker(spec MarkerSpec) Marker
}

package mapitem

import (
	"time"

	"eventmap/core-go/internal/tagging"
)

// Radius restricts results to events within KM kilometres of a reference point.
type Radius struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
	KM  float64 `json:"km" validate:"gt=0,lte=1000"`
}

// Filters is the immutable filter value passed with every map query.
type Filters struct {
	SearchTerm        string     `json:"searchTerm,omitempty" validate:"max=200"`
	Categories        []string   `json:"categories,omitempty" validate:"max=50"`
	Tags              []string   `json:"tags,omitempty" validate:"max=50"`
	DateStart         *time.Time `json:"dateRangeStart,omitempty"`
	DateEnd           *time.Time `json:"dateRangeEnd,omitempty"`
	OnlineOnly        bool       `json:"onlineOnly,omitempty"`
	EditorsChoiceOnly bool       `json:"editorsChoiceOnly,omitempty"`
	Venues            []string   `json:"venues,omitempty" validate:"max=50,dive,uuid"`
	Near              *Radius    `json:"near,omitempty"`
}

// Normalize returns a canonical copy: lists deduplicated and sorted, times in UTC.
func (f Filters) Normalize() Filters {
	out := f
	out.Categories = tagging.NormalizeIDList(f.Categories)
	out.Tags = tagging.NormalizeTagList(f.Tags)
	out.Venues = tagging.NormalizeIDList(f.Venues)
	if f.DateStart != nil {
		t := f.DateStart.UTC()
		out.DateStart = &t
	}
	if f.DateEnd != nil {
		t := f.DateEnd.UTC()
		out.DateEnd = &t
	}
	if f.Near != nil {
		n := *f.Near
		out.Near = &n
	}
	return out
}

// Equal compares two filter values after normalization.
func (f Filters) Equal(o Filters) bool {
	a, b := f.Normalize(), o.Normalize()
	if a.SearchTerm != b.SearchTerm || a.OnlineOnly != b.OnlineOnly || a.EditorsChoiceOnly != b.EditorsChoiceOnly {
		return false
	}
	if !tagging.Equal(a.Categories, b.Categories) || !tagging.Equal(a.Tags, b.Tags) || !tagging.Equal(a.Venues, b.Venues) {
		return false
	}
	if !equalTime(a.DateStart, b.DateStart) || !equalTime(a.DateEnd, b.DateEnd) {
		return false
	}
	switch {
	case a.Near == nil && b.Near == nil:
		return true
	case a.Near == nil || b.Near == nil:
		return false
	default:
		return *a.Near == *b.Near
	}
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

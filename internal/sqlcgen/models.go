package sqlcgen

import "time"

// MapEvent is one published, located event as seen by the map query. Lat/Lng
// are the venue's coordinates when the event has a venue, else the event's own.
type MapEvent struct {
	ID              string
	Title           string
	StartDate       time.Time
	EndDate         time.Time
	Lat             *float64
	Lng             *float64
	IsEditorsChoice bool
	CategoryID      *string
	OnlineEvent     bool
	VenueID         *string
	VenueName       *string
	Address         *string
	City            *string
}

package spatial

import (
	"fmt"
	"math"
	"sort"

	"eventmap/core-go/internal/mapitem"
)

// Grid partitions coordinates into square lat/lng cells whose side halves with
// every zoom level.
type Grid struct {
	CellBase       float64
	MinZoom        int
	MaxZoom        int
	EnumerateLimit int
}

// Zoom clamps z into the grid's zoom range.
func (g Grid) Zoom(z int) int {
	if z < g.MinZoom {
		return g.MinZoom
	}
	if z > g.MaxZoom {
		return g.MaxZoom
	}
	return z
}

// CellSize returns the side of a cell in degrees at zoom z.
func (g Grid) CellSize(z int) float64 {
	return g.CellBase / math.Exp2(float64(g.Zoom(z)))
}

type cellKey struct {
	x, y int64
}

func (g Grid) cellOf(lat, lng, size float64) cellKey {
	return cellKey{
		x: int64(math.Floor(lng / size)),
		y: int64(math.Floor(lat / size)),
	}
}

// ClusterID names the cell at zoom z. It only depends on the cell and the
// clamped zoom, so a cluster keeps its id across pans.
func ClusterID(zoom int, x, y int64) string {
	return fmt.Sprintf("cluster:z%d:%d:%d", zoom, x, y)
}

// Cluster groups located events into points and clusters. Events without
// valid coordinates are dropped. The result is ordered by count descending,
// then lat, lng and id.
func (g Grid) Cluster(events []mapitem.EventRecord, zoom int) []mapitem.Item {
	z := g.Zoom(zoom)
	size := g.CellSize(z)

	cells := make(map[cellKey][]mapitem.EventRecord)
	for _, ev := range events {
		if !ev.Located() || !mapitem.ValidCoordinate(*ev.Latitude, *ev.Longitude) {
			continue
		}
		k := g.cellOf(*ev.Latitude, *ev.Longitude, size)
		cells[k] = append(cells[k], ev)
	}

	items := make([]mapitem.Item, 0, len(cells))
	for k, members := range cells {
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

		if len(members) == 1 {
			ev := members[0]
			items = append(items, mapitem.NewPoint(ev, *ev.Latitude, *ev.Longitude))
			continue
		}

		var sumLat, sumLng float64
		for _, ev := range members {
			sumLat += *ev.Latitude
			sumLng += *ev.Longitude
		}
		n := float64(len(members))

		var enumerated []mapitem.EventRecord
		if len(members) < g.EnumerateLimit {
			enumerated = members
		}
		items = append(items, mapitem.NewCluster(ClusterID(z, k.x, k.y), sumLat/n, sumLng/n, len(members), enumerated))
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if ca, cb := itemCount(a), itemCount(b); ca != cb {
			return ca > cb
		}
		if a.Lat != b.Lat {
			return a.Lat < b.Lat
		}
		if a.Lng != b.Lng {
			return a.Lng < b.Lng
		}
		return a.ID < b.ID
	})
	return items
}

func itemCount(it mapitem.Item) int {
	if it.IsCluster() {
		return it.Count
	}
	return 1
}

package markerstyle

import (
	"encoding/base64"
	"strings"
	"testing"

	"eventmap/core-go/internal/mapitem"
)

func TestClusterTier(t *testing.T) {
	cases := []struct {
		count int
		want  Tier
	}{
		{2, Tier{40, 14}},
		{9, Tier{40, 14}},
		{10, Tier{50, 16}},
		{99, Tier{50, 16}},
		{100, Tier{60, 18}},
	}
	for _, tc := range cases {
		if got := ClusterTier(tc.count); got != tc.want {
			t.Fatalf("count %d: expected %+v, got %+v", tc.count, tc.want, got)
		}
	}
}

func TestMarkerColor(t *testing.T) {
	if got := MarkerColor(mapitem.EventRecord{}); got != ColorDefault {
		t.Fatalf("expected default color, got %q", got)
	}
	if got := MarkerColor(mapitem.EventRecord{IsEditorsChoice: true}); got != ColorEditorsChoice {
		t.Fatalf("expected editors choice color, got %q", got)
	}
}

func TestZIndex_ClustersAbovePoints(t *testing.T) {
	point := mapitem.NewPoint(mapitem.EventRecord{ID: "a"}, 1, 1)
	small := mapitem.NewCluster("c1", 1, 1, 2, nil)
	big := mapitem.NewCluster("c2", 1, 1, 50, nil)

	if !(ZIndex(point) < ZIndex(small) && ZIndex(small) < ZIndex(big)) {
		t.Fatalf("expected point < small cluster < big cluster, got %d %d %d", ZIndex(point), ZIndex(small), ZIndex(big))
	}
	if ZIndex(point) <= MaxZIndex {
		t.Fatalf("expected point above base layer")
	}
}

func TestFor_Cluster(t *testing.T) {
	s := For(mapitem.NewCluster("c", 1, 1, 12, nil))
	if s.Label != "12" || s.Size != 50 || s.Title != "Cluster of 12" {
		t.Fatalf("unexpected cluster style %+v", s)
	}
	if !strings.HasPrefix(s.Icon.URL, "data:image/svg+xml;base64,") {
		t.Fatalf("expected svg data url, got %q", s.Icon.URL)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s.Icon.URL, "data:image/svg+xml;base64,"))
	if err != nil {
		t.Fatalf("decode icon: %v", err)
	}
	if !strings.Contains(string(raw), ">12</text>") {
		t.Fatalf("expected count label in svg, got %s", raw)
	}
}

func TestFor_Point(t *testing.T) {
	s := For(mapitem.NewPoint(mapitem.EventRecord{ID: "a", Title: "Gig", IsEditorsChoice: true}, 1, 1))
	if s.Color != ColorEditorsChoice || s.Title != "Gig" || s.Icon.AnchorY != PointSize {
		t.Fatalf("unexpected point style %+v", s)
	}
}

func TestMarkerIcon_FillsWithEventColor(t *testing.T) {
	icon := MarkerIcon(mapitem.EventRecord{IsEditorsChoice: true})
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(icon.URL, "data:image/svg+xml;base64,"))
	if err != nil {
		t.Fatalf("decode icon: %v", err)
	}
	if !strings.Contains(string(raw), `fill="`+ColorEditorsChoice+`"`) {
		t.Fatalf("expected editors choice fill, got %s", raw)
	}
	if icon.Width != PointSize || icon.AnchorX != PointSize/2 {
		t.Fatalf("unexpected icon geometry %+v", icon)
	}

	point := For(mapitem.NewPoint(mapitem.EventRecord{ID: "a", IsEditorsChoice: true}, 1, 1))
	if point.Icon != icon {
		t.Fatalf("expected point style to use the event marker icon")
	}
}

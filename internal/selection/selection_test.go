package selection

import (
	"testing"

	"github.com/rs/zerolog"

	"eventmap/core-go/internal/mapitem"
	"eventmap/core-go/internal/surface"
)

func items() []mapitem.Item {
	return []mapitem.Item{
		mapitem.NewPoint(mapitem.EventRecord{ID: "p"}, 1, 1),
		mapitem.NewCluster("small", 2, 2, 2, []mapitem.EventRecord{{ID: "a"}, {ID: "b"}}),
		mapitem.NewCluster("big", 3, 3, 40, nil),
	}
}

func TestFeed_FlattensPointsAndEnumerableClusters(t *testing.T) {
	feed := Feed(items())
	if len(feed) != 3 || feed[0].ID != "p" || feed[1].ID != "a" || feed[2].ID != "b" {
		t.Fatalf("unexpected feed %+v", feed)
	}
	if got := Feed(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil feed, got %#v", got)
	}
}

func TestTitle(t *testing.T) {
	cases := []struct {
		selected, feed int
		want           string
	}{
		{0, 3, "Events in View (3)"},
		{1, 0, "Event Details"},
		{4, 0, "Selected Events (4)"},
	}
	for _, tc := range cases {
		if got := Title(tc.selected, tc.feed); got != tc.want {
			t.Fatalf("Title(%d,%d): expected %q, got %q", tc.selected, tc.feed, tc.want, got)
		}
	}
}

func TestCoordinator_SelectionLifecycle(t *testing.T) {
	c := New(false)
	c.SetItems(items(), false)

	v := c.View()
	if v.Open || v.Selected || v.Title != "Events in View (3)" {
		t.Fatalf("unexpected initial view %+v", v)
	}

	c.Select([]mapitem.EventRecord{{ID: "a"}, {ID: "b"}})
	v = c.View()
	if !v.Open || !v.Selected || v.Title != "Selected Events (2)" {
		t.Fatalf("expected open selection, got %+v", v)
	}

	c.ClearSelection()
	v = c.View()
	if !v.Open || v.Selected || len(v.Events) != 3 {
		t.Fatalf("expected feed after clearing, got %+v", v)
	}

	c.Select([]mapitem.EventRecord{{ID: "p"}})
	c.Toggle()
	v = c.View()
	if v.Open || v.Selected {
		t.Fatalf("expected close to clear selection, got %+v", v)
	}
	c.Toggle()
	if !c.View().Open {
		t.Fatalf("expected toggle to reopen")
	}
}

func TestCoordinator_BackgroundClickClearsSelection(t *testing.T) {
	m := surface.NewHeadless(zerolog.Nop())
	c := New(true)
	detach := c.AttachMap(m)

	var views []View
	c.Subscribe(func(v View) { views = append(views, v) })

	c.Select([]mapitem.EventRecord{{ID: "x"}})
	m.ClickBackground()
	if c.View().Selected {
		t.Fatalf("expected background click to clear the selection")
	}
	if len(views) != 2 || views[0].Title != "Event Details" {
		t.Fatalf("unexpected notifications %+v", views)
	}

	detach()
	c.Select([]mapitem.EventRecord{{ID: "x"}})
	m.ClickBackground()
	if !c.View().Selected {
		t.Fatalf("expected detached coordinator to ignore background clicks")
	}
}

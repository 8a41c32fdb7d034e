// Package markerstyle maps map items to their visual style. Everything here is
// a pure function of the item.
package markerstyle

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"eventmap/core-go/internal/mapitem"
)

const (
	ColorDefault       = "#ff9800"
	ColorEditorsChoice = "#9c27b0"
	ColorCluster       = "#ff9800"

	// MaxZIndex mirrors the map widget's marker z-index ceiling; markers are
	// stacked above it so they never sit under base-layer overlays.
	MaxZIndex = 1000000

	PointSize = 32
)

// Tier is the rendered size class of a cluster.
type Tier struct {
	Size     int
	FontSize int
}

var (
	tierSmall  = Tier{Size: 40, FontSize: 14}
	tierMedium = Tier{Size: 50, FontSize: 16}
	tierLarge  = Tier{Size: 60, FontSize: 18}
)

// ClusterTier returns the size class for a member count.
func ClusterTier(count int) Tier {
	switch {
	case count >= 100:
		return tierLarge
	case count >= 10:
		return tierMedium
	default:
		return tierSmall
	}
}

// MarkerColor returns the fill color of a point marker.
func MarkerColor(ev mapitem.EventRecord) string {
	if ev.IsEditorsChoice {
		return ColorEditorsChoice
	}
	return ColorDefault
}

// ZIndex stacks clusters above points and larger clusters above smaller ones.
func ZIndex(it mapitem.Item) int {
	if it.IsCluster() {
		return MaxZIndex + it.Count
	}
	return MaxZIndex + 1
}

// Title is the accessible label of a marker.
func Title(it mapitem.Item) string {
	if it.IsCluster() {
		return fmt.Sprintf("Cluster of %d", it.Count)
	}
	if it.Event != nil {
		return it.Event.Title
	}
	return ""
}

// Style is the complete visual description handed to the map surface.
type Style struct {
	Color    string
	Size     int
	FontSize int
	Label    string
	Title    string
	ZIndex   int
	Icon     Icon
}

// Icon is an image marker anchored at (AnchorX, AnchorY) pixels.
type Icon struct {
	URL     string
	Width   int
	Height  int
	AnchorX int
	AnchorY int
}

// For returns the style for any item.
func For(it mapitem.Item) Style {
	if it.IsCluster() {
		tier := ClusterTier(it.Count)
		return Style{
			Color:    ColorCluster,
			Size:     tier.Size,
			FontSize: tier.FontSize,
			Label:    strconv.Itoa(it.Count),
			Title:    Title(it),
			ZIndex:   ZIndex(it),
			Icon:     ClusterIcon(it.Count),
		}
	}

	var ev mapitem.EventRecord
	if it.Event != nil {
		ev = *it.Event
	}
	return Style{
		Color:  MarkerColor(ev),
		Size:   PointSize,
		Title:  Title(it),
		ZIndex: ZIndex(it),
		Icon:   MarkerIcon(ev),
	}
}

// MarkerIcon returns the SVG pin for an event.
func MarkerIcon(ev mapitem.EventRecord) Icon {
	return pointIcon(MarkerColor(ev))
}

func pointIcon(color string) Icon {
	svg := fmt.Sprintf(`<svg width="32" height="32" viewBox="0 0 32 32" xmlns="http://www.w3.org/2000/svg"><circle cx="16" cy="16" r="12" fill="%s" stroke="white" stroke-width="2"/><circle cx="16" cy="16" r="6" fill="white" opacity="0.8"/></svg>`, color)
	return Icon{URL: svgDataURL(svg), Width: PointSize, Height: PointSize, AnchorX: PointSize / 2, AnchorY: PointSize}
}

// ClusterIcon returns the SVG badge for a cluster of count events.
func ClusterIcon(count int) Icon {
	tier := ClusterTier(count)
	half := tier.Size / 2
	svg := fmt.Sprintf(`<svg width="%[1]d" height="%[1]d" viewBox="0 0 %[1]d %[1]d" xmlns="http://www.w3.org/2000/svg"><circle cx="%[2]d" cy="%[2]d" r="%[3]d" fill="%[4]s" stroke="white" stroke-width="3"/><text x="%[2]d" y="%[2]d" text-anchor="middle" dominant-baseline="central" fill="white" font-size="%[5]d" font-weight="bold">%[6]d</text></svg>`,
		tier.Size, half, half-2, ColorCluster, tier.FontSize, count)
	return Icon{URL: svgDataURL(svg), Width: tier.Size, Height: tier.Size, AnchorX: half, AnchorY: half}
}

func svgDataURL(svg string) string {
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"eventmap/core-go/internal/filterctx"
	"eventmap/core-go/internal/mapclient"
	"eventmap/core-go/internal/mapitem"
	"eventmap/core-go/internal/tagging"
)

// queryFlags are the viewport and filter flags shared by query and watch.
type queryFlags struct {
	zoom           int
	minLat, maxLat float64
	minLng, maxLng float64
	search         string
	categories     string
	tags           string
	venues         string
	preset         string
	online         bool
	editorsChoice  bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.zoom, "zoom", 12, "map zoom level")
	fs.Float64Var(&f.minLat, "min-lat", 48.10, "viewport south edge")
	fs.Float64Var(&f.maxLat, "max-lat", 48.32, "viewport north edge")
	fs.Float64Var(&f.minLng, "min-lng", 16.18, "viewport west edge")
	fs.Float64Var(&f.maxLng, "max-lng", 16.58, "viewport east edge")
	fs.StringVar(&f.search, "search", "", "search term")
	fs.StringVar(&f.categories, "categories", "", "comma-separated category ids")
	fs.StringVar(&f.tags, "tags", "", "comma-separated tags")
	fs.StringVar(&f.venues, "venues", "", "comma-separated venue ids")
	fs.StringVar(&f.preset, "preset", "", "date preset: today, tomorrow, week, month")
	fs.BoolVar(&f.online, "online", false, "online events only")
	fs.BoolVar(&f.editorsChoice, "editors-choice", false, "editor's choice only")
}

func (f *queryFlags) bbox() mapitem.BoundingBox {
	return mapitem.BoundingBox{MinLat: f.minLat, MaxLat: f.maxLat, MinLng: f.minLng, MaxLng: f.maxLng}
}

func (f *queryFlags) filters(now time.Time) (mapitem.Filters, error) {
	out := mapitem.Filters{
		SearchTerm:        f.search,
		Categories:        tagging.SplitList(f.categories),
		Tags:              tagging.SplitList(f.tags),
		Venues:            tagging.SplitList(f.venues),
		OnlineOnly:        f.online,
		EditorsChoiceOnly: f.editorsChoice,
	}
	if f.preset != "" {
		start, end, err := filterctx.Preset(f.preset).Range(now)
		if err != nil {
			return mapitem.Filters{}, err
		}
		out.DateStart, out.DateEnd = &start, &end
	}
	return out.Normalize(), nil
}

func newQueryCmd() *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run one map query against the API and print the items",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(true)
			if err != nil {
				return err
			}
			client, err := mapclient.New(logger, mapclient.Options{
				BaseURL: cfg.Client.APIURL,
				Timeout: cfg.Client.RequestTimeout,
			})
			if err != nil {
				return err
			}

			filters, err := flags.filters(time.Now())
			if err != nil {
				return err
			}
			bbox := flags.bbox()
			if err := bbox.Validate(); err != nil {
				return err
			}

			items, err := client.Query(cmd.Context(), mapitem.Query{Zoom: flags.zoom, BBox: &bbox, Filters: filters})
			if err != nil {
				return fmt.Errorf("map query: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(mapitem.Response{Items: items})
		},
	}
	flags.register(cmd)
	return cmd
}

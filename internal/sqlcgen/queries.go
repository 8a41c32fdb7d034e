package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const listMapEvents = `-- name: ListMapEvents :many
WITH located AS (
	SELECT
		e.id,
		e.title,
		e.description,
		e.start_date,
		e.end_date,
		CASE WHEN v.id IS NOT NULL THEN v.latitude ELSE e.latitude END AS lat,
		CASE WHEN v.id IS NOT NULL THEN v.longitude ELSE e.longitude END AS lng,
		e.is_editors_choice,
		e.category_id,
		e.online_event,
		e.tags,
		v.id AS venue_id,
		v.name AS venue_name,
		v.address,
		v.city
	FROM events e
	LEFT JOIN venues v ON v.id = e.venue_id
	WHERE e.published = TRUE
)
SELECT
	l.id::text,
	l.title,
	l.start_date,
	l.end_date,
	l.lat,
	l.lng,
	l.is_editors_choice,
	l.category_id,
	l.online_event,
	l.venue_id::text,
	l.venue_name,
	l.address,
	l.city
FROM located l
WHERE
	l.lat IS NOT NULL
	AND l.lng IS NOT NULL
	AND (
		($1::timestamptz IS NULL AND $2::timestamptz IS NULL AND l.end_date >= $3::timestamptz)
		OR (
			($1::timestamptz IS NOT NULL OR $2::timestamptz IS NOT NULL)
			AND ($1::timestamptz IS NULL OR l.end_date >= $1::timestamptz)
			AND ($2::timestamptz IS NULL OR l.start_date <= $2::timestamptz)
		)
	)
	AND (
		$4::text IS NULL
		OR l.title ILIKE $4::text
		OR COALESCE(l.description, '') ILIKE $4::text
	)
	AND ($5::text[] IS NULL OR l.category_id = ANY($5::text[]))
	AND ($6::text[] IS NULL OR EXISTS (SELECT 1 FROM unnest(l.tags) AS t(tag) WHERE lower(t.tag) = ANY($6::text[])))
	AND ($7::uuid[] IS NULL OR l.venue_id = ANY($7::uuid[]))
	AND ($8::boolean = FALSE OR l.online_event = TRUE)
	AND ($9::boolean = FALSE OR l.is_editors_choice = TRUE)
	AND (
		$10::double precision IS NULL
		OR (
			l.lat BETWEEN $10::double precision AND $11::double precision
			AND l.lng BETWEEN $12::double precision AND $13::double precision
		)
	)
ORDER BY l.id
`

// ListMapEventsParams carries the optional predicates of ListMapEvents. Nil
// pointers and nil slices disable the corresponding predicate. The bbox
// fields are all set or all nil.
type ListMapEventsParams struct {
	DateStart         *time.Time
	DateEnd           *time.Time
	Now               time.Time
	SearchPattern     *string
	Categories        []string
	Tags              []string
	Venues            []string
	OnlineOnly        bool
	EditorsChoiceOnly bool
	MinLat            *float64
	MaxLat            *float64
	MinLng            *float64
	MaxLng            *float64
}

func (q *Queries) ListMapEvents(ctx context.Context, arg ListMapEventsParams) ([]MapEvent, error) {
	rows, err := q.db.Query(
		ctx,
		listMapEvents,
		arg.DateStart,
		arg.DateEnd,
		arg.Now,
		arg.SearchPattern,
		arg.Categories,
		arg.Tags,
		arg.Venues,
		arg.OnlineOnly,
		arg.EditorsChoiceOnly,
		arg.MinLat,
		arg.MaxLat,
		arg.MinLng,
		arg.MaxLng,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MapEvent
	for rows.Next() {
		var i MapEvent
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.StartDate,
			&i.EndDate,
			&i.Lat,
			&i.Lng,
			&i.IsEditorsChoice,
			&i.CategoryID,
			&i.OnlineEvent,
			&i.VenueID,
			&i.VenueName,
			&i.Address,
			&i.City,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

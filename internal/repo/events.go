package repo

import (
	"context"
	"database/sql"
	"strings"

	"planline/internal/domain"
)

const eventColumns = `id,ts,type,goal_id,entity_kind,entity_id,payload_json`

// ListEvents returns the newest events first, optionally scoped to a goal.
func (r Repo) ListEvents(ctx context.Context, goalID string, limit int) ([]domain.Event, error) {
	var clauses []string
	var args []any
	if goalID != "" {
		clauses = append(clauses, "goal_id=?")
		args = append(args, goalID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + eventColumns + ` FROM events ` + where + ` ORDER BY id DESC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return listEvents(ctx, r.DB, query, args...)
}

// EventsAfter returns up to limit events with id > cursor, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return listEvents(ctx, r.DB, `SELECT `+eventColumns+` FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
}

// LatestEventID returns the id of the newest event, or 0.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func listEvents(ctx context.Context, q queryer, query string, args ...any) ([]domain.Event, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var ev domain.Event
		var gid, eid sql.NullString
		if err := rows.Scan(&ev.ID, &ev.TS, &ev.Type, &gid, &ev.EntityKind, &eid, &ev.Payload); err != nil {
			return nil, err
		}
		ev.GoalID = gid.String
		ev.EntityID = eid.String
		res = append(res, ev)
	}
	return res, rows.Err()
}

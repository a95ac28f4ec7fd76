package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"planline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const goalColumns = `id,title,description,current_level,focus_areas_json,daily_minutes,start_date,end_date,task_ids_json,created_at,updated_at`

func scanGoal(row scanner) (domain.Goal, error) {
	var g domain.Goal
	var focus, taskIDs string
	err := row.Scan(&g.ID, &g.Title, &g.Description, &g.CurrentLevel, &focus, &g.DailyMinutes, &g.StartDate, &g.EndDate, &taskIDs, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return g, ErrNotFound
	}
	if err != nil {
		return g, err
	}
	if g.FocusAreas, err = unmarshalStrings(focus); err != nil {
		return g, fmt.Errorf("goal %s focus areas: %w", g.ID, err)
	}
	if g.Tasks, err = unmarshalStrings(taskIDs); err != nil {
		return g, fmt.Errorf("goal %s task ids: %w", g.ID, err)
	}
	return g, nil
}

func (r Repo) InsertGoalTx(ctx context.Context, tx *sql.Tx, g domain.Goal) error {
	focus, err := marshalStrings(g.FocusAreas)
	if err != nil {
		return err
	}
	taskIDs, err := marshalStrings(g.Tasks)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO goals(`+goalColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		g.ID, g.Title, g.Description, g.CurrentLevel, focus, g.DailyMinutes, g.StartDate, g.EndDate, taskIDs, g.CreatedAt, g.UpdatedAt)
	return err
}

func (r Repo) GetGoal(ctx context.Context, id string) (domain.Goal, error) {
	return getGoal(ctx, r.DB, id)
}

func (r Repo) GetGoalTx(ctx context.Context, tx *sql.Tx, id string) (domain.Goal, error) {
	return getGoal(ctx, tx, id)
}

func getGoal(ctx context.Context, q queryer, id string) (domain.Goal, error) {
	return scanGoal(q.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id=?`, id))
}

// ListGoals returns goals newest first.
func (r Repo) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	return listGoals(ctx, r.DB, `SELECT `+goalColumns+` FROM goals ORDER BY created_at DESC, id DESC`)
}

// ListGoalsWithoutTasks returns goals whose task reference list is empty.
func (r Repo) ListGoalsWithoutTasks(ctx context.Context) ([]domain.Goal, error) {
	return listGoals(ctx, r.DB, `SELECT `+goalColumns+` FROM goals WHERE task_ids_json='[]' ORDER BY created_at ASC, id ASC`)
}

func listGoals(ctx context.Context, q queryer, query string, args ...any) ([]domain.Goal, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// UpdateGoalTx writes every goal field except the task reference list.
func (r Repo) UpdateGoalTx(ctx context.Context, tx *sql.Tx, g domain.Goal) error {
	focus, err := marshalStrings(g.FocusAreas)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE goals SET title=?, description=?, current_level=?, focus_areas_json=?, daily_minutes=?, start_date=?, end_date=?, updated_at=? WHERE id=?`,
		g.Title, g.Description, g.CurrentLevel, focus, g.DailyMinutes, g.StartDate, g.EndDate, g.UpdatedAt, g.ID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// SetGoalTasksTx replaces the goal's task reference list and nothing else.
func (r Repo) SetGoalTasksTx(ctx context.Context, tx *sql.Tx, goalID string, taskIDs []string, updatedAt string) error {
	payload, err := marshalStrings(taskIDs)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE goals SET task_ids_json=?, updated_at=? WHERE id=?`, payload, updatedAt, goalID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (r Repo) DeleteGoalTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM goals WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalStrings(in []string) (string, error) {
	if in == nil {
		in = []string{}
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalStrings(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

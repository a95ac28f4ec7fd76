package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"planline/internal/domain"
)

const taskColumns = `id,goal_id,title,description,estimated_minutes,status,due_date,completed_at,success_criteria_json,prerequisites_json,notes,daily_focus,resources_json,created_at,updated_at`

// insertChunk keeps multi-row inserts well below SQLite's bound-variable limit.
const insertChunk = 500

func scanTask(row scanner) (domain.Task, error) {
	var t domain.Task
	var completedAt sql.NullString
	var criteria, prereqs, resources string
	err := row.Scan(&t.ID, &t.GoalID, &t.Title, &t.Description, &t.EstimatedMinutes, &t.Status, &t.DueDate, &completedAt,
		&criteria, &prereqs, &t.Notes, &t.DailyFocus, &resources, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	if t.SuccessCriteria, err = unmarshalStrings(criteria); err != nil {
		return t, fmt.Errorf("task %s success criteria: %w", t.ID, err)
	}
	if t.Prerequisites, err = unmarshalStrings(prereqs); err != nil {
		return t, fmt.Errorf("task %s prerequisites: %w", t.ID, err)
	}
	if t.Resources, err = unmarshalStrings(resources); err != nil {
		return t, fmt.Errorf("task %s resources: %w", t.ID, err)
	}
	return t, nil
}

// InsertTasksTx writes the batch with multi-row INSERT statements inside tx.
func (r Repo) InsertTasksTx(ctx context.Context, tx *sql.Tx, tasks []domain.Task) error {
	for start := 0; start < len(tasks); start += insertChunk {
		end := start + insertChunk
		if end > len(tasks) {
			end = len(tasks)
		}
		if err := insertTaskChunk(ctx, tx, tasks[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func insertTaskChunk(ctx context.Context, tx *sql.Tx, tasks []domain.Task) error {
	placeholders := make([]string, 0, len(tasks))
	args := make([]any, 0, len(tasks)*15)
	for _, t := range tasks {
		criteria, err := marshalStrings(t.SuccessCriteria)
		if err != nil {
			return err
		}
		prereqs, err := marshalStrings(t.Prerequisites)
		if err != nil {
			return err
		}
		resources, err := marshalStrings(t.Resources)
		if err != nil {
			return err
		}
		placeholders = append(placeholders, "(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args, t.ID, t.GoalID, t.Title, t.Description, t.EstimatedMinutes, t.Status, t.DueDate, nullableStringPtr(t.CompletedAt),
			criteria, prereqs, t.Notes, t.DailyFocus, resources, t.CreatedAt, t.UpdatedAt)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES `+strings.Join(placeholders, ","), args...)
	return err
}

// DeleteTasksByGoalTx removes every task owned by goalID and reports how many went.
func (r Repo) DeleteTasksByGoalTx(ctx context.Context, tx *sql.Tx, goalID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE goal_id=?`, goalID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTask(ctx, r.DB, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return getTask(ctx, tx, id)
}

func getTask(ctx context.Context, q queryer, id string) (domain.Task, error) {
	return scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

// ListTasksByGoal returns the goal's tasks ordered by due date.
func (r Repo) ListTasksByGoal(ctx context.Context, goalID string) ([]domain.Task, error) {
	return listTasks(ctx, r.DB, `SELECT `+taskColumns+` FROM tasks WHERE goal_id=? ORDER BY due_date ASC`, goalID)
}

// ListTasksDue returns every task due on date (YYYY-MM-DD) across goals.
func (r Repo) ListTasksDue(ctx context.Context, date string) ([]domain.Task, error) {
	return listTasks(ctx, r.DB, `SELECT `+taskColumns+` FROM tasks WHERE due_date=? ORDER BY goal_id ASC, id ASC`, date)
}

// RecentTasks returns the most recently touched tasks.
func (r Repo) RecentTasks(ctx context.Context, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = 10
	}
	return listTasks(ctx, r.DB, `SELECT `+taskColumns+` FROM tasks ORDER BY updated_at DESC, due_date ASC, id ASC LIMIT ?`, limit)
}

func listTasks(ctx context.Context, q queryer, query string, args ...any) ([]domain.Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTaskStatusTx(ctx context.Context, tx *sql.Tx, id, status string, completedAt *string, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, completed_at=?, updated_at=? WHERE id=?`,
		status, nullableStringPtr(completedAt), updatedAt, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (r Repo) DeleteTaskTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// CountTasksByStatus groups the goal's tasks by status.
func (r Repo) CountTasksByStatus(ctx context.Context, goalID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks WHERE goal_id=? GROUP BY status`, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{
		domain.TaskPending:   0,
		domain.TaskCompleted: 0,
		domain.TaskSkipped:   0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

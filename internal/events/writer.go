package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	GoalCreated      = "goal.created"
	GoalUpdated      = "goal.updated"
	GoalDeleted      = "goal.deleted"
	TasksCleared     = "tasks.cleared"
	TasksSynthesized = "tasks.synthesized"
	TaskStatus       = "task.status"
	TaskDeleted      = "task.deleted"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside tx so it commits or rolls back with the change it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, goalID, entityKind, entityID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,goal_id,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, nullable(goalID), entityKind, nullable(entityID), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// Package synth turns provider output or local fallbacks into task templates
// and binds templates to concrete days of a goal.
package synth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"planline/internal/domain"
)

const (
	DefaultTitle = "Untitled Task"
	DefaultFocus = "General Practice"
)

// maxEstimate bounds a provider's estimatedTime; larger values are treated as
// mistyped.
const maxEstimate = math.MaxInt32

var ErrMalformedResponse = errors.New("malformed provider response")

// MalformedResponseError rejects provider text whose top-level shape is not
// {"tasks": [ {...}, ... ]}.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed provider response: %s: %v", e.Reason, e.Err)
	}
	return "malformed provider response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// Defaults fills fields the provider omitted or mistyped.
type Defaults struct {
	DailyMinutes int
	FocusAreas   []string
}

// DefaultsFor derives parse defaults from a goal.
func DefaultsFor(g domain.Goal) Defaults {
	return Defaults{DailyMinutes: g.DailyMinutes, FocusAreas: g.FocusAreas}
}

// JoinFocus renders focus areas as a single daily focus label.
func JoinFocus(areas []string) string {
	var kept []string
	for _, a := range areas {
		if a = strings.TrimSpace(a); a != "" {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		return DefaultFocus
	}
	return strings.Join(kept, ", ")
}

type rawTask struct {
	Title           json.RawMessage `json:"title"`
	Description     json.RawMessage `json:"description"`
	EstimatedTime   json.RawMessage `json:"estimatedTime"`
	SuccessCriteria json.RawMessage `json:"successCriteria"`
	Prerequisites   json.RawMessage `json:"prerequisites"`
	Notes           json.RawMessage `json:"notes"`
	DailyFocus      json.RawMessage `json:"dailyFocus"`
	Resources       json.RawMessage `json:"resources"`
}

// Parse validates raw provider text and returns one template per task element.
func Parse(raw string, d Defaults) ([]domain.TaskTemplate, error) {
	cleaned := cleanJSONResponse(raw)
	if cleaned == "" {
		return nil, &MalformedResponseError{Reason: "empty response"}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		return nil, &MalformedResponseError{Reason: "not a JSON object", Err: err}
	}
	if top == nil {
		return nil, &MalformedResponseError{Reason: "not a JSON object"}
	}
	tasksRaw, ok := top["tasks"]
	if !ok {
		return nil, &MalformedResponseError{Reason: `missing "tasks" field`}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(tasksRaw, &elems); err != nil || elems == nil {
		return nil, &MalformedResponseError{Reason: `"tasks" is not an array`, Err: err}
	}
	if len(elems) == 0 {
		return nil, &MalformedResponseError{Reason: `"tasks" is empty`}
	}

	out := make([]domain.TaskTemplate, 0, len(elems))
	for i, elem := range elems {
		trimmed := bytes.TrimSpace(elem)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("task %d is not an object", i)}
		}
		var rt rawTask
		if err := json.Unmarshal(trimmed, &rt); err != nil {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("task %d", i), Err: err}
		}
		out = append(out, repair(rt, d))
	}
	return out, nil
}

func repair(rt rawTask, d Defaults) domain.TaskTemplate {
	t := domain.TaskTemplate{
		Title:            stringOr(rt.Title, DefaultTitle),
		Description:      stringOr(rt.Description, ""),
		EstimatedMinutes: minutesOr(rt.EstimatedTime, d.DailyMinutes),
		SuccessCriteria:  stringList(rt.SuccessCriteria),
		Prerequisites:    stringList(rt.Prerequisites),
		Notes:            stringOr(rt.Notes, ""),
		DailyFocus:       stringOr(rt.DailyFocus, JoinFocus(d.FocusAreas)),
		Resources:        stringList(rt.Resources),
	}
	return t
}

// stringOr returns the JSON string in raw, or def when it is absent, not a
// string, or blank.
func stringOr(raw json.RawMessage, def string) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return def
	}
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func minutesOr(raw json.RawMessage, def int) int {
	var f float64
	if len(raw) == 0 || json.Unmarshal(raw, &f) != nil {
		return def
	}
	if f < 1 || f > maxEstimate {
		return def
	}
	return int(f + 0.5)
}

// stringList keeps the string entries of a JSON array; anything else is empty.
func stringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

// cleanJSONResponse strips markdown code fences and surrounding prose.
func cleanJSONResponse(resp string) string {
	resp = strings.TrimSpace(resp)
	if idx := strings.Index(resp, "```"); idx >= 0 {
		resp = resp[idx+3:]
		resp = strings.TrimPrefix(resp, "json")
		resp = strings.TrimPrefix(resp, "JSON")
		if end := strings.LastIndex(resp, "```"); end >= 0 {
			resp = resp[:end]
		}
	}
	return strings.TrimSpace(resp)
}

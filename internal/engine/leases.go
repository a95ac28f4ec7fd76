package engine

import "sync"

// GoalLeases is an in-process lease table keyed by goal id. At most one
// holder per goal; a second Acquire fails instead of waiting.
type GoalLeases struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewGoalLeases() *GoalLeases {
	return &GoalLeases{held: map[string]struct{}{}}
}

// Acquire claims goalID and returns the function that releases it.
func (l *GoalLeases) Acquire(goalID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]struct{}{}
	}
	if _, busy := l.held[goalID]; busy {
		return nil, ErrSynthesisInProgress
	}
	l.held[goalID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, goalID)
			l.mu.Unlock()
		})
	}, nil
}

func (l *GoalLeases) Held(goalID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[goalID]
	return ok
}

package queue

// transitionTable encodes the restricted status graph:
//
//	pending    -> processing
//	processing -> done
//	processing -> failed
//	processing -> pending  (retry)
//	pending    -> deleted
//	failed     -> deleted
//	done       -> deleted
//
// Any transition not present here must be rejected. This is a small,
// purpose-built stand-in for a generic guarded state machine: the task
// lifecycle only ever needs "is this edge in the graph", not guards,
// actions, or re-entrant Fire semantics, so the table is kept as data
// rather than reaching for a general finite-state-machine abstraction.
var transitionTable = map[TaskStatus]map[TaskStatus]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusDeleted:    true,
	},
	StatusProcessing: {
		StatusDone:    true,
		StatusFailed:  true,
		StatusPending: true,
	},
	StatusFailed: {
		StatusDeleted: true,
	},
	StatusDone: {
		StatusDeleted: true,
	},
	StatusDeleted: {},
}

// canTransition reports whether moving a task from `from` to `to` is a
// legal edge in the status graph. A no-op transition (from == to) is
// always legal, making idempotent re-application of the same terminal
// status (e.g. a repeated soft delete) safe.
func canTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	edges, ok := transitionTable[from]
	if !ok {
		return false
	}
	return edges[to]
}

// CanTransition is the exported form of canTransition, used by out-of-package
// Storage adapters (filestore, redisstore, sqlstore) that must enforce the
// same status graph the in-package MemoryStorage enforces.
func CanTransition(from, to TaskStatus) bool {
	return canTransition(from, to)
}

// HigherPriority reports whether a should be dequeued before b: higher
// Priority wins, ties break on the earlier CreatedAt, and any remaining
// tie breaks on the lexicographically smaller task ID so the ordering is
// total and deterministic. MemoryStorage and filestore select with this
// function, and sqlstore's Dequeue orders by the same three keys in SQL.
// redisstore instead ranks by its sorted-set score (Priority*1e6 minus
// CreatedAt in Unix milliseconds), so one priority step there weighs the
// same as 1e6 ms of age, and equal scores do not fall back to the task ID.
func HigherPriority(a, b *Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

package entity

// StatusCount is a grouped count of cancellation requests by status.
type StatusCount struct {
	Status CancellationStatus
	Count  int64
}

// MethodOutcome aggregates terminal outcomes for one method inside a
// time window, as read straight from the store.
type MethodOutcome struct {
	Method    CancellationMethod
	Total     int64
	Completed int64
	Failed    int64
	// Mean completedAt-createdAt over completed requests, in seconds.
	AvgCompletionSeconds float64
}

package tasks

// TaskSchedulerInterface defines the interface for background task scheduling.
// Used by the main application and the operator API to manage the polling and
// delivery loops.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	ForceCheck(feedID string) (CheckReport, error)
}

// CheckReport aggregates the outcome of an operator-triggered force check.
type CheckReport struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Enqueued  int `json:"enqueued"`
}

package model

// TaskStatus represents the status of an image fetch task
type TaskStatus string

const (
	// TaskStatusPending means the task is queued but not started
	TaskStatusPending TaskStatus = "Pending"

	// TaskStatusRunning means the fetch is in progress
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusCancelling means a cancel was requested and the fetch is unwinding
	TaskStatusCancelling TaskStatus = "Cancelling"

	// TaskStatusCancelled means the task was cancelled by the caller
	TaskStatusCancelled TaskStatus = "Cancelled"

	// TaskStatusCompleted means the image was delivered
	TaskStatusCompleted TaskStatus = "Completed"

	// TaskStatusError means the fetch failed
	TaskStatusError TaskStatus = "Error"
)

// String returns the string representation of TaskStatus
func (ts TaskStatus) String() string {
	return string(ts)
}

// IsActive returns true if the task is in an active state
func (ts TaskStatus) IsActive() bool {
	return ts == TaskStatusRunning || ts == TaskStatusCancelling
}

// IsFinished returns true if the task is in a finished state (completed, cancelled, or error)
func (ts TaskStatus) IsFinished() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusCancelled || ts == TaskStatusError
}

package models

// GoalStatus is the lifecycle state of a user goal.
type GoalStatus string

const (
	GoalPending    GoalStatus = "pending"
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
	GoalCancelled  GoalStatus = "cancelled"
)

// Goal is the subset of a user goal the dashboard summary needs.
type Goal struct {
	ID     string     `json:"id"`
	UserID string     `json:"user_id"`
	Title  string     `json:"title"`
	Status GoalStatus `json:"status"`
}

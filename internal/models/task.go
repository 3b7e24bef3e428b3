package models

import "time"

// Task status values. The status vocabulary is deliberately limited to two
// states; the status endpoint exposes it as a completed boolean.
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
)

// Task priority values.
const (
	TaskPriorityLow    = "low"
	TaskPriorityNormal = "normal"
	TaskPriorityHigh   = "high"
)

// Task is a unit of work scoped to a team with zero or more assignees.
type Task struct {
	BaseModel

	TeamID      string     `gorm:"type:uuid;not null;index" json:"team_id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	Status      string     `gorm:"not null;default:pending" json:"status"`
	Priority    string     `gorm:"not null;default:normal" json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CreatedBy   string     `gorm:"type:uuid" json:"created_by"`

	Team      *Team  `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"-"`
	Assignees []User `gorm:"many2many:task_assignees;constraint:OnDelete:CASCADE" json:"assignees"`
}

// Completed reports whether the task has reached its terminal status.
func (t *Task) Completed() bool {
	return t.Status == TaskStatusCompleted
}

// ValidTaskStatus reports whether status belongs to the canonical vocabulary.
func ValidTaskStatus(status string) bool {
	return status == TaskStatusPending || status == TaskStatusCompleted
}

// ValidTaskPriority reports whether priority belongs to the canonical set.
func ValidTaskPriority(priority string) bool {
	switch priority {
	case TaskPriorityLow, TaskPriorityNormal, TaskPriorityHigh:
		return true
	}
	return false
}

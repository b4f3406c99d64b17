package models

import (
	"time"
)

// Status labels offered by the frontend. The store accepts any string.
const (
	StatusNotStarted = "Not Started"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
)

// Priority labels offered by the frontend.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// Task represents a task record in the system
type Task struct {
	ID          int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description" gorm:"not null"`
	StartDate   Date       `json:"startDate" gorm:"column:start_date;type:date;not null"`
	EndDate     Date       `json:"endDate" gorm:"column:end_date;type:date;not null"`
	Status      string     `json:"status" gorm:"index"`
	Worklog     string     `json:"worklog"`
	Priority    string     `json:"priority" gorm:"not null"`
	StoryStats  StoryStats `json:"storyStats" gorm:"column:story_stats;type:text"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"column:created_at;not null;autoCreateTime:false"`
	Version     int        `json:"version" gorm:"not null;default:1"`
}

// TableName specifies the table name for Task Model
func (Task) TableName() string {
	return "tasks"
}

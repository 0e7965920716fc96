package db

import (
	"time"

	"github.com/google/uuid"
)

// 任务状态
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
	TaskStatusArchived   = "archived"
)

// Task 定义了短期可执行事项，可选关联一个目标
type Task struct {
	Model
	AccountID   uuid.UUID  `gorm:"type:uuid;index;not null"`
	GoalID      *uuid.UUID `gorm:"type:uuid;index"`
	Title       string     `gorm:"size:255;not null"`
	Description string     `gorm:"type:text"`
	DueDate     *time.Time
	Status      string `gorm:"size:20;not null;default:pending;index"`
	Tags        []Tag  `gorm:"many2many:task_tags;"`
}

// MarkDone 将任务置为完成；已完成时返回 false
func (t *Task) MarkDone() bool {
	if t.Status == TaskStatusDone {
		return false
	}
	t.Status = TaskStatusDone
	return true
}

// ValidTaskStatus 判断状态值是否合法
func ValidTaskStatus(status string) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusDone, TaskStatusArchived:
		return true
	}
	return false
}

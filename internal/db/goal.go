package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 目标状态
const (
	GoalStatusActive    = "active"
	GoalStatusPaused    = "paused"
	GoalStatusCompleted = "completed"
	GoalStatusFailed    = "failed"
)

// Goal 定义了长期目标，可关联任务与习惯
// TargetValue/CurrentValue 使用两位小数的定点数，CompletionXPReward 为完成时的一次性奖励
type Goal struct {
	Model
	AccountID          uuid.UUID           `gorm:"type:uuid;index;not null"`
	Name               string              `gorm:"size:255;not null"`
	Description        string              `gorm:"type:text"`
	Status             string              `gorm:"size:20;not null;default:active;index"`
	TargetValue        decimal.NullDecimal `gorm:"type:numeric(10,2)"`
	CurrentValue       decimal.Decimal     `gorm:"type:numeric(10,2);not null;default:0"`
	TargetDate         *time.Time
	CompletionXPReward int `gorm:"not null;default:50"`
}

// MarkCompleted 将目标置为已完成；已完成时返回 false，调用方据此决定是否发放奖励
func (g *Goal) MarkCompleted() bool {
	if g.Status == GoalStatusCompleted {
		return false
	}
	g.Status = GoalStatusCompleted
	return true
}

// Progress 返回当前进度占目标值的比例，未设置目标值时返回 0
func (g *Goal) Progress() float64 {
	if !g.TargetValue.Valid || g.TargetValue.Decimal.IsZero() {
		return 0
	}
	ratio, _ := g.CurrentValue.Div(g.TargetValue.Decimal).Float64()
	return ratio
}

// ValidGoalStatus 判断状态值是否合法
func ValidGoalStatus(status string) bool {
	switch status {
	case GoalStatusActive, GoalStatusPaused, GoalStatusCompleted, GoalStatusFailed:
		return true
	}
	return false
}

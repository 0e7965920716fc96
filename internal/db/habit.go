package db

import (
	"time"

	"github.com/betterlyfe/internal/gamification"
	"github.com/google/uuid"
)

// 习惯频率
const (
	HabitFrequencyDaily   = "daily"
	HabitFrequencyWeekly  = "weekly"
	HabitFrequencyMonthly = "monthly"
)

// Habit 定义了习惯模型
// Streak 为当前连胜数，LastCompleted 为最近一次完成的日历日期（UTC 零点）
// 频率仅用于统计目标次数，连胜始终按自然日计算
type Habit struct {
	Model
	AccountID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	GoalID        *uuid.UUID `gorm:"type:uuid;index"`
	Name          string     `gorm:"size:255;not null"`
	Description   string     `gorm:"type:text"`
	Frequency     string     `gorm:"size:20;not null;default:daily"`
	Streak        int        `gorm:"not null;default:0"`
	LastCompleted *time.Time
}

// Complete 记录一次完成并更新连胜，date 需已归一化为日历日期
func (h *Habit) Complete(date time.Time) {
	h.Streak = gamification.NextStreak(h.Streak, h.LastCompleted, date)
	h.LastCompleted = &date
}

// ValidHabitFrequency 判断频率是否合法
func ValidHabitFrequency(frequency string) bool {
	switch frequency {
	case HabitFrequencyDaily, HabitFrequencyWeekly, HabitFrequencyMonthly:
		return true
	}
	return false
}

// HabitEntry 记录习惯在某一天的完成或缺席
// Habit + Date 采用唯一索引，重复记录同一天时覆盖而非新增
type HabitEntry struct {
	Model
	HabitID   uuid.UUID `gorm:"type:uuid;not null;index;index:idx_habit_entry_unique,unique"`
	Habit     Habit     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Date      time.Time `gorm:"not null;index:idx_habit_entry_unique,unique"`
	Completed bool      `gorm:"not null;default:false"`
}

// TableName 重写确保唯一索引作用到 habit_id + date
func (HabitEntry) TableName() string {
	return "habit_entries"
}

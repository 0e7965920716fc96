// Package gamification 收敛经验值、等级、连胜与徽章门槛的纯计算逻辑，
// 不依赖存储，由 db 模型与 service 层调用。
package gamification

import "errors"

const (
	// LevelStep 为从 L 级升到 L+1 级所需的经验系数：门槛为 L*LevelStep。
	LevelStep = 100
	// HabitCompletionXP 为每次习惯打卡奖励的经验。
	HabitCompletionXP = 5
	// TaskCompletionXP 为任务完成奖励的经验。
	TaskCompletionXP = 10
	// DefaultGoalCompletionXP 为目标完成的默认奖励。
	DefaultGoalCompletionXP = 50
	// StartingLevel 为新账户的初始等级。
	StartingLevel = 1
)

// ErrNegativeXP 在尝试累加负经验时返回。
var ErrNegativeXP = errors.New("xp amount must be non-negative")

// Relevel 从当前等级出发逐级提升，直到 xp < level*LevelStep。
// 只会升级、不会降级，也不会改用累计门槛的闭式公式。
func Relevel(xp, level int) int {
	if level < StartingLevel {
		level = StartingLevel
	}
	for xp >= level*LevelStep {
		level++
	}
	return level
}

// LevelFloor 返回逐级推导下进入 level 时的经验值 (level-1)*LevelStep，仅用于展示进度。
// 增量规则下它与 50*L*(L-1) 的累计门槛并不相同，以增量规则为准。
func LevelFloor(level int) int {
	if level <= StartingLevel {
		return 0
	}
	return (level - 1) * LevelStep
}

// NextLevelAt 返回当前等级下触发下一次升级的经验值。
func NextLevelAt(level int) int {
	if level < StartingLevel {
		level = StartingLevel
	}
	return level * LevelStep
}

// BadgeEligible 判断经验是否达到徽章门槛。
func BadgeEligible(xp, required int) bool {
	return xp >= required
}

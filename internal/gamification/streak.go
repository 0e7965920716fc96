package gamification

import "time"

// CalendarDate 取 t 在 loc 时区下的年月日，归一化为 UTC 零点。
// 存储与比较日期时统一使用该形式，避免时区与夏令时造成的偏差。
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween 返回 from 到 to 相差的整天数，按 UTC 下的年月日比较。
// 日历日期以 UTC 零点存储，驱动可能以本地时区返回同一时刻，先转回 UTC 再取日期。
func DaysBetween(from, to time.Time) int {
	from, to = from.UTC(), to.UTC()
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// NextStreak 根据上次完成日期与本次完成日期计算新的连胜数：
//   - 首次完成：1
//   - 相隔 1 天：连胜 +1
//   - 相隔超过 1 天：重置为 1
//   - 同一天或更早的日期：保持不变
func NextStreak(streak int, lastCompleted *time.Time, date time.Time) int {
	if lastCompleted == nil {
		return 1
	}

	delta := DaysBetween(*lastCompleted, date)
	switch {
	case delta == 1:
		return streak + 1
	case delta > 1:
		return 1
	default:
		return streak
	}
}

// StreakRuns 统计按日期升序排列的完成日期中，末尾连续段长度与最长连续段长度。
func StreakRuns(dates []time.Time) (current, longest int) {
	if len(dates) == 0 {
		return 0, 0
	}

	current, longest = 1, 1
	for i := 1; i < len(dates); i++ {
		switch DaysBetween(dates[i-1], dates[i]) {
		case 0:
			continue
		case 1:
			current++
		default:
			current = 1
		}
		if current > longest {
			longest = current
		}
	}
	return current, longest
}

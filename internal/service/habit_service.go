package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/gamification"
	"github.com/betterlyfe/internal/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HabitService 负责习惯的增删改查、打卡连胜以及每日记录统计
// 日期统一按 loc 时区的日历日计算，存储为 UTC 零点
type HabitService struct {
	db  *gorm.DB
	log *logger.Logger
	loc *time.Location
	now func() time.Time
}

// HabitFilter 描述习惯列表过滤条件
type HabitFilter struct {
	Frequency      string
	Search         string
	IncludeDeleted bool
}

// HabitInput 定义创建/更新习惯时可配置字段
type HabitInput struct {
	Name        string
	Description string
	Frequency   string
	GoalID      *uuid.UUID
}

// HabitEntryInput 定义记录某日完成情况的输入，Date 为空时取今天
type HabitEntryInput struct {
	Date      *time.Time
	Completed bool
}

// HabitEntryFilter 指定记录查询区间，零值表示不限
type HabitEntryFilter struct {
	Start          time.Time
	End            time.Time
	IncludeDeleted bool
}

// HabitCompletion 为一次打卡的结果
type HabitCompletion struct {
	Habit *db.Habit
	Entry *db.HabitEntry
	Award *XPAward
}

// HabitStats 汇总区间内的统计数据
type HabitStats struct {
	RangeStart     time.Time `json:"range_start"`
	RangeEnd       time.Time `json:"range_end"`
	CompletedCount int       `json:"completed_count"`
	TargetCount    int       `json:"target_count"`
	CompletionRate float64   `json:"completion_rate"`
	CurrentStreak  int       `json:"current_streak"`
	LongestStreak  int       `json:"longest_streak"`
}

// NewHabitService 构造 HabitService，loc 为空时使用本地时区
func NewHabitService(gdb *gorm.DB, log *logger.Logger, loc *time.Location) *HabitService {
	if loc == nil {
		loc = time.Local
	}
	return &HabitService{
		db:  gdb,
		log: logger.OrNop(log).With("service", "habit"),
		loc: loc,
		now: time.Now,
	}
}

// Today 返回当前时区下的日历日期
func (s *HabitService) Today() time.Time {
	return gamification.CalendarDate(s.now(), s.loc)
}

// List 返回账户的习惯集合，支持基本筛选
func (s *HabitService) List(ctx context.Context, accountID uuid.UUID, filter HabitFilter) ([]db.Habit, error) {
	query := view(s.db.WithContext(ctx), filter.IncludeDeleted).Where("account_id = ?", accountID)

	if frequency := strings.TrimSpace(filter.Frequency); frequency != "" {
		query = query.Where("frequency = ?", frequency)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := fmt.Sprintf("%%%s%%", search)
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	var habits []db.Habit
	if err := query.Order("created_at DESC").Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}

// Get 根据 ID 获取习惯
func (s *HabitService) Get(ctx context.Context, accountID, id uuid.UUID) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.WithContext(ctx).Scopes(ownedBy(accountID)).First(&habit, "id = ?", id).Error; err != nil {
		return nil, translateLookup(err, ErrHabitNotFound, "get habit")
	}
	return &habit, nil
}

// Create 新建习惯
func (s *HabitService) Create(ctx context.Context, accountID uuid.UUID, input HabitInput) (*db.Habit, error) {
	input, err := normalizeHabitInput(input)
	if err != nil {
		return nil, err
	}

	habit := db.Habit{
		AccountID:   accountID,
		GoalID:      input.GoalID,
		Name:        input.Name,
		Description: input.Description,
		Frequency:   input.Frequency,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureGoalOwned(tx, accountID, input.GoalID); err != nil {
			return err
		}
		if err := tx.Create(&habit).Error; err != nil {
			return fmt.Errorf("create habit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &habit, nil
}

// Update 更新习惯，连胜与最近完成日期只由打卡维护
func (s *HabitService) Update(ctx context.Context, accountID, id uuid.UUID, input HabitInput) (*db.Habit, error) {
	input, err := normalizeHabitInput(input)
	if err != nil {
		return nil, err
	}

	var habit db.Habit
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(ownedBy(accountID)).First(&habit, "id = ?", id).Error; err != nil {
			return translateLookup(err, ErrHabitNotFound, "find habit")
		}
		if err := ensureGoalOwned(tx, accountID, input.GoalID); err != nil {
			return err
		}

		habit.Name = input.Name
		habit.Description = input.Description
		habit.Frequency = input.Frequency
		habit.GoalID = input.GoalID

		if err := tx.Model(&habit).Select("name", "description", "frequency", "goal_id").Updates(&habit).Error; err != nil {
			return fmt.Errorf("update habit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &habit, nil
}

// Delete 软删除习惯
func (s *HabitService) Delete(ctx context.Context, accountID, id uuid.UUID) (*db.Habit, error) {
	return softDelete[db.Habit](ctx, s.db, id, ownedBy(accountID), ErrHabitNotFound, s.now())
}

// Restore 恢复被软删除的习惯
func (s *HabitService) Restore(ctx context.Context, accountID, id uuid.UUID) (*db.Habit, error) {
	return restoreDeleted[db.Habit](ctx, s.db, id, ownedBy(accountID), ErrHabitNotFound)
}

// Complete 记录一次完成：更新连胜与最近完成日期，写入当日的完成记录，并发放 HabitCompletionXP。
// 同一天重复打卡时连胜保持不变，但每次调用都会发放经验。
func (s *HabitService) Complete(ctx context.Context, accountID, id uuid.UUID, date *time.Time) (*HabitCompletion, error) {
	day := s.resolveDate(date)

	var (
		habit db.Habit
		entry *db.HabitEntry
		award *XPAward
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(ownedBy(accountID)).
			First(&habit, "id = ?", id).Error; err != nil {
			return translateLookup(err, ErrHabitNotFound, "find habit")
		}

		habit.Complete(day)
		if err := tx.Model(&habit).Updates(map[string]any{
			"streak":         habit.Streak,
			"last_completed": habit.LastCompleted,
		}).Error; err != nil {
			return fmt.Errorf("update streak: %w", err)
		}

		var err error
		if entry, err = upsertHabitEntry(tx, habit.ID, day, true); err != nil {
			return err
		}

		award, err = awardXP(ctx, tx, s.log, habit.AccountID, gamification.HabitCompletionXP, SourceHabit)
		return err
	})
	if err != nil {
		return nil, err
	}

	completionsTotal.WithLabelValues(SourceHabit).Inc()
	s.log.Info("habit completed", "habit_id", habit.ID, "date", day.Format(time.DateOnly), "streak", habit.Streak)

	return &HabitCompletion{Habit: &habit, Entry: entry, Award: award}, nil
}

// LogEntry 幂等地记录某日的完成情况：同一天已有记录（包括墓碑）时覆盖并恢复
// 仅写入记录，不影响连胜与经验
func (s *HabitService) LogEntry(ctx context.Context, accountID, habitID uuid.UUID, input HabitEntryInput) (*db.HabitEntry, error) {
	day := s.resolveDate(input.Date)

	var entry *db.HabitEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var habit db.Habit
		if err := tx.Scopes(ownedBy(accountID)).First(&habit, "id = ?", habitID).Error; err != nil {
			return translateLookup(err, ErrHabitNotFound, "find habit")
		}

		var err error
		entry, err = upsertHabitEntry(tx, habit.ID, day, input.Completed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Entries 返回指定区间内的记录，按日期升序
func (s *HabitService) Entries(ctx context.Context, accountID, habitID uuid.UUID, filter HabitEntryFilter) ([]db.HabitEntry, error) {
	if _, err := s.Get(ctx, accountID, habitID); err != nil {
		return nil, err
	}

	query := view(s.db.WithContext(ctx), filter.IncludeDeleted).Where("habit_id = ?", habitID)
	if !filter.Start.IsZero() {
		query = query.Where("date >= ?", gamification.CalendarDate(filter.Start, nil))
	}
	if !filter.End.IsZero() {
		query = query.Where("date <= ?", gamification.CalendarDate(filter.End, nil))
	}

	var entries []db.HabitEntry
	if err := query.Order("date ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list habit entries: %w", err)
	}
	return entries, nil
}

// DeleteEntry 软删除一条记录
func (s *HabitService) DeleteEntry(ctx context.Context, accountID, entryID uuid.UUID) (*db.HabitEntry, error) {
	return softDelete[db.HabitEntry](ctx, s.db, entryID, entryOwnedBy(accountID), ErrHabitEntryNotFound, s.now())
}

// RestoreEntry 恢复被软删除的记录
func (s *HabitService) RestoreEntry(ctx context.Context, accountID, entryID uuid.UUID) (*db.HabitEntry, error) {
	return restoreDeleted[db.HabitEntry](ctx, s.db, entryID, entryOwnedBy(accountID), ErrHabitEntryNotFound)
}

// Stats 计算区间内的完成数、按频率推算的目标次数以及连胜
func (s *HabitService) Stats(ctx context.Context, accountID, habitID uuid.UUID, start, end time.Time) (*HabitStats, error) {
	start = gamification.CalendarDate(start, nil)
	end = gamification.CalendarDate(end, nil)
	if end.Before(start) {
		return nil, invalidArgument("invalid range: end before start")
	}

	habit, err := s.Get(ctx, accountID, habitID)
	if err != nil {
		return nil, err
	}

	var dates []time.Time
	if err := s.db.WithContext(ctx).Model(&db.HabitEntry{}).
		Where("habit_id = ? AND completed = ?", habit.ID, true).
		Where("date BETWEEN ? AND ?", start, end).
		Order("date ASC").
		Pluck("date", &dates).Error; err != nil {
		return nil, fmt.Errorf("list completed dates: %w", err)
	}

	stats := &HabitStats{
		RangeStart:     start,
		RangeEnd:       end,
		CompletedCount: len(dates),
		TargetCount:    expectedCount(habit.Frequency, start, end),
	}
	if stats.TargetCount > 0 {
		stats.CompletionRate = float64(stats.CompletedCount) / float64(stats.TargetCount)
	}
	stats.CurrentStreak, stats.LongestStreak = gamification.StreakRuns(dates)

	return stats, nil
}

func (s *HabitService) resolveDate(date *time.Time) time.Time {
	if date == nil {
		return s.Today()
	}
	return gamification.CalendarDate(*date, s.loc)
}

// upsertHabitEntry 以 habit_id + date 为键写入记录，冲突时覆盖完成状态并清除墓碑
func upsertHabitEntry(tx *gorm.DB, habitID uuid.UUID, date time.Time, completed bool) (*db.HabitEntry, error) {
	record := db.HabitEntry{HabitID: habitID, Date: date, Completed: completed}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"completed", "is_deleted", "deleted_at", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert habit entry: %w", err)
	}

	var entry db.HabitEntry
	if err := tx.Where("habit_id = ? AND date = ?", habitID, date).First(&entry).Error; err != nil {
		return nil, fmt.Errorf("reload habit entry: %w", err)
	}
	return &entry, nil
}

func entryOwnedBy(accountID uuid.UUID) scopeFunc {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("habit_id IN (?)", q.Session(&gorm.Session{NewDB: true}).
			Unscoped().
			Model(&db.Habit{}).
			Select("id").
			Where("account_id = ?", accountID))
	}
}

func normalizeHabitInput(input HabitInput) (HabitInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Frequency = strings.TrimSpace(strings.ToLower(input.Frequency))
	if input.Frequency == "" {
		input.Frequency = db.HabitFrequencyDaily
	}

	if input.Name == "" {
		return input, invalidArgument("habit name is required")
	}
	if !db.ValidHabitFrequency(input.Frequency) {
		return input, invalidArgument("unsupported frequency %q", input.Frequency)
	}
	return input, nil
}

// expectedCount 按频率推算区间内应完成的次数，不足一个周期按一个周期计
func expectedCount(frequency string, start, end time.Time) int {
	if end.Before(start) {
		return 0
	}

	days := gamification.DaysBetween(start, end) + 1

	switch frequency {
	case db.HabitFrequencyWeekly:
		return max(1, days/7)
	case db.HabitFrequencyMonthly:
		return max(1, diffMonths(start, end))
	default:
		return days
	}
}

func diffMonths(start, end time.Time) int {
	y1, m1, _ := start.Date()
	y2, m2, _ := end.Date()

	return (y2-y1)*12 + int(m2-m1) + 1
}

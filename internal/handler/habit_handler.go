package handler

import (
	"net/http"
	"time"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/service"
	"github.com/gin-gonic/gin"
)

// statsDefaultDays 为未指定区间时统计的天数
const statsDefaultDays = 30

type habitRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Frequency   string  `json:"frequency"`
	GoalID      *string `json:"goal_id"`
}

type habitCompleteRequest struct {
	Date string `json:"date"`
}

type habitEntryRequest struct {
	Date      string `json:"date"`
	Completed *bool  `json:"completed"`
}

func (r habitRequest) toInput() (service.HabitInput, error) {
	goalID, err := parseOptionalID(r.GoalID)
	if err != nil {
		return service.HabitInput{}, err
	}
	return service.HabitInput{
		Name:        r.Name,
		Description: r.Description,
		Frequency:   r.Frequency,
		GoalID:      goalID,
	}, nil
}

// ListHabits 返回习惯列表 JSON
func (a *API) ListHabits(c *gin.Context) {
	habits, err := a.habits.List(c.Request.Context(), currentAccountID(c), service.HabitFilter{
		Frequency:      c.Query("frequency"),
		Search:         c.Query("search"),
		IncludeDeleted: includeDeleted(c),
	})
	if err != nil {
		a.handleServiceError(c, err, "获取习惯列表失败")
		return
	}

	items := make([]gin.H, 0, len(habits))
	for _, habit := range habits {
		items = append(items, habitToPayload(habit))
	}
	c.JSON(http.StatusOK, gin.H{"habits": items})
}

// GetHabit 返回单个习惯
func (a *API) GetHabit(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的习惯ID")
	if !ok {
		return
	}

	habit, err := a.habits.Get(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "获取习惯失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// CreateHabit 创建习惯
func (a *API) CreateHabit(c *gin.Context) {
	var req habitRequest
	if !bindJSON(c, &req, "请填写习惯名称") {
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	habit, err := a.habits.Create(c.Request.Context(), currentAccountID(c), input)
	if err != nil {
		a.handleServiceError(c, err, "创建习惯失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"habit": habitToPayload(*habit)})
}

// UpdateHabit 更新习惯
func (a *API) UpdateHabit(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的习惯ID")
	if !ok {
		return
	}

	var req habitRequest
	if !bindJSON(c, &req, "请填写习惯名称") {
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	habit, err := a.habits.Update(c.Request.Context(), currentAccountID(c), id, input)
	if err != nil {
		a.handleServiceError(c, err, "更新习惯失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// DeleteHabit 软删除习惯
func (a *API) DeleteHabit(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的习惯ID")
	if !ok {
		return
	}

	habit, err := a.habits.Delete(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "删除习惯失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// RestoreHabit 恢复被删除的习惯
func (a *API) RestoreHabit(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的习惯ID")
	if !ok {
		return
	}

	habit, err := a.habits.Restore(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "恢复习惯失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// CompleteHabit 打卡：更新连胜并发放经验，未指定日期时取今天
func (a *API) CompleteHabit(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的习惯ID")
	if !ok {
		return
	}

	var req habitCompleteRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "无效的打卡数据") {
		return
	}
	day, err := a.parseDate(req.Date)
	if err != nil {
		respondError(c, http.StatusBadRequest, "日期格式应为 YYYY-MM-DD")
		return
	}

	result, err := a.habits.Complete(c.Request.Context(), currentAccountID(c), id, day)
	if err != nil {
		a.handleServiceError(c, err, "打卡失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"habit": habitToPayload(*result.Habit),
		"entry": habitEntryToPayload(*result.Entry),
		"award": xpAwardPayload(result.Award),
	})
}

// ListHabitEntries 返回区间内的每日记录
func (a *API) ListHabitEntries(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的习惯ID")
	if !ok {
		return
	}

	start, end, ok := a.queryRange(c, false)
	if !ok {
		return
	}

	entries, err := a.habits.Entries(c.Request.Context(), currentAccountID(c), id, service.HabitEntryFilter{
		Start:          start,
		End:            end,
		IncludeDeleted: includeDeleted(c),
	})
	if err != nil {
		a.handleServiceError(c, err, "获取打卡记录失败")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		items = append(items, habitEntryToPayload(entry))
	}
	c.JSON(http.StatusOK, gin.H{"entries": items})
}

// UpsertHabitEntry 记录某日的完成情况，同一天重复提交时覆盖
func (a *API) UpsertHabitEntry(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的习惯ID")
	if !ok {
		return
	}

	var req habitEntryRequest
	if !bindJSON(c, &req, "无效的打卡数据") {
		return
	}
	day, err := a.parseDate(req.Date)
	if err != nil {
		respondError(c, http.StatusBadRequest, "日期格式应为 YYYY-MM-DD")
		return
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}

	entry, err := a.habits.LogEntry(c.Request.Context(), currentAccountID(c), id, service.HabitEntryInput{
		Date:      day,
		Completed: completed,
	})
	if err != nil {
		a.handleServiceError(c, err, "保存打卡记录失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": habitEntryToPayload(*entry)})
}

// DeleteHabitEntry 软删除一条打卡记录
func (a *API) DeleteHabitEntry(c *gin.Context) {
	id, ok := pathID(c, "entryID", "无效的记录ID")
	if !ok {
		return
	}

	entry, err := a.habits.DeleteEntry(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "删除打卡记录失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": habitEntryToPayload(*entry)})
}

// RestoreHabitEntry 恢复被删除的打卡记录
func (a *API) RestoreHabitEntry(c *gin.Context) {
	id, ok := pathID(c, "entryID", "无效的记录ID")
	if !ok {
		return
	}

	entry, err := a.habits.RestoreEntry(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "恢复打卡记录失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": habitEntryToPayload(*entry)})
}

// GetHabitStats 返回区间统计，默认最近 30 天
func (a *API) GetHabitStats(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的习惯ID")
	if !ok {
		return
	}

	start, end, ok := a.queryRange(c, true)
	if !ok {
		return
	}

	stats, err := a.habits.Stats(c.Request.Context(), currentAccountID(c), id, start, end)
	if err != nil {
		a.handleServiceError(c, err, "获取统计失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"range_start":     formatDay(stats.RangeStart),
		"range_end":       formatDay(stats.RangeEnd),
		"completed_count": stats.CompletedCount,
		"target_count":    stats.TargetCount,
		"completion_rate": stats.CompletionRate,
		"current_streak":  stats.CurrentStreak,
		"longest_streak":  stats.LongestStreak,
	})
}

// queryRange 解析 ?start=&end=，withDefault 为 true 时补齐为截至今天的最近 30 天
func (a *API) queryRange(c *gin.Context, withDefault bool) (time.Time, time.Time, bool) {
	start, err := a.parseDate(c.Query("start"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "开始日期格式应为 YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	end, err := a.parseDate(c.Query("end"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "结束日期格式应为 YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}

	var from, to time.Time
	if start != nil {
		from = *start
	}
	if end != nil {
		to = *end
	}
	if withDefault {
		if to.IsZero() {
			to = a.habits.Today()
		}
		if from.IsZero() {
			from = to.AddDate(0, 0, -(statsDefaultDays - 1))
		}
	}
	return from, to, true
}

func habitToPayload(habit db.Habit) gin.H {
	return mergeFields(modelFields(&habit.Model), gin.H{
		"name":           habit.Name,
		"description":    habit.Description,
		"frequency":      habit.Frequency,
		"goal_id":        habit.GoalID,
		"streak":         habit.Streak,
		"last_completed": formatDate(habit.LastCompleted),
	})
}

func habitEntryToPayload(entry db.HabitEntry) gin.H {
	return mergeFields(modelFields(&entry.Model), gin.H{
		"habit_id":  entry.HabitID,
		"date":      formatDay(entry.Date),
		"completed": entry.Completed,
	})
}

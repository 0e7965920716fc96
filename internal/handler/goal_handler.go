package handler

import (
	"net/http"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type goalRequest struct {
	Name               string           `json:"name" binding:"required"`
	Description        string           `json:"description"`
	Status             string           `json:"status"`
	TargetValue        *decimal.Decimal `json:"target_value"`
	TargetDate         string           `json:"target_date"`
	CompletionXPReward *int             `json:"completion_xp_reward"`
}

type goalProgressRequest struct {
	CurrentValue *decimal.Decimal `json:"current_value" binding:"required"`
}

func (r goalRequest) toInput(a *API) (service.GoalInput, error) {
	targetDate, err := a.parseDay(r.TargetDate)
	if err != nil {
		return service.GoalInput{}, err
	}
	return service.GoalInput{
		Name:               r.Name,
		Description:        r.Description,
		Status:             r.Status,
		TargetValue:        r.TargetValue,
		TargetDate:         targetDate,
		CompletionXPReward: r.CompletionXPReward,
	}, nil
}

// ListGoals 返回当前账户的目标
func (a *API) ListGoals(c *gin.Context) {
	goals, err := a.goals.List(c.Request.Context(), currentAccountID(c), service.GoalFilter{
		Status:         c.Query("status"),
		IncludeDeleted: includeDeleted(c),
	})
	if err != nil {
		a.handleServiceError(c, err, "获取目标列表失败")
		return
	}

	items := make([]gin.H, 0, len(goals))
	for _, goal := range goals {
		items = append(items, goalToPayload(goal))
	}
	c.JSON(http.StatusOK, gin.H{"goals": items})
}

// GetGoal 返回单个目标
func (a *API) GetGoal(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的目标ID")
	if !ok {
		return
	}

	goal, err := a.goals.Get(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "获取目标失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// CreateGoal 创建目标
func (a *API) CreateGoal(c *gin.Context) {
	var req goalRequest
	if !bindJSON(c, &req, "目标名称不能为空") {
		return
	}
	input, err := req.toInput(a)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	goal, err := a.goals.Create(c.Request.Context(), currentAccountID(c), input)
	if err != nil {
		a.handleServiceError(c, err, "创建目标失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"goal": goalToPayload(*goal)})
}

// UpdateGoal 更新目标
func (a *API) UpdateGoal(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的目标ID")
	if !ok {
		return
	}

	var req goalRequest
	if !bindJSON(c, &req, "目标名称不能为空") {
		return
	}
	input, err := req.toInput(a)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	goal, err := a.goals.Update(c.Request.Context(), currentAccountID(c), id, input)
	if err != nil {
		a.handleServiceError(c, err, "更新目标失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// UpdateGoalProgress 设置目标的当前进度
func (a *API) UpdateGoalProgress(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的目标ID")
	if !ok {
		return
	}

	var req goalProgressRequest
	if !bindJSON(c, &req, "请填写当前进度") {
		return
	}

	goal, err := a.goals.UpdateProgress(c.Request.Context(), currentAccountID(c), id, *req.CurrentValue)
	if err != nil {
		a.handleServiceError(c, err, "更新进度失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// CompleteGoal 将目标标记为完成并发放奖励
func (a *API) CompleteGoal(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的目标ID")
	if !ok {
		return
	}

	goal, award, err := a.goals.MarkCompleted(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "完成目标失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal), "award": xpAwardPayload(award)})
}

// DeleteGoal 软删除目标
func (a *API) DeleteGoal(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的目标ID")
	if !ok {
		return
	}

	goal, err := a.goals.Delete(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "删除目标失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// RestoreGoal 恢复被删除的目标
func (a *API) RestoreGoal(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的目标ID")
	if !ok {
		return
	}

	goal, err := a.goals.Restore(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "恢复目标失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

func goalToPayload(goal db.Goal) gin.H {
	var target any
	if goal.TargetValue.Valid {
		target = goal.TargetValue.Decimal.StringFixed(2)
	}

	return mergeFields(modelFields(&goal.Model), gin.H{
		"name":                 goal.Name,
		"description":          goal.Description,
		"status":               goal.Status,
		"target_value":         target,
		"current_value":        goal.CurrentValue.StringFixed(2),
		"progress":             goal.Progress(),
		"target_date":          formatDate(goal.TargetDate),
		"completion_xp_reward": goal.CompletionXPReward,
	})
}

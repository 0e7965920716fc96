package handler

import (
	"net/http"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/service"
	"github.com/gin-gonic/gin"
)

type taskRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	DueDate     string   `json:"due_date"`
	GoalID      *string  `json:"goal_id"`
	TagIDs      []string `json:"tag_ids"`
}

func (r taskRequest) toInput(a *API) (service.TaskInput, error) {
	dueDate, err := a.parseDay(r.DueDate)
	if err != nil {
		return service.TaskInput{}, err
	}
	goalID, err := parseOptionalID(r.GoalID)
	if err != nil {
		return service.TaskInput{}, err
	}
	tagIDs, err := parseIDList(r.TagIDs)
	if err != nil {
		return service.TaskInput{}, err
	}

	return service.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		DueDate:     dueDate,
		GoalID:      goalID,
		TagIDs:      tagIDs,
	}, nil
}

// ListTasks 返回当前账户的任务，可按状态与目标过滤
func (a *API) ListTasks(c *gin.Context) {
	goalParam := c.Query("goal_id")
	goalID, err := parseOptionalID(&goalParam)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	tasks, err := a.tasks.List(c.Request.Context(), currentAccountID(c), service.TaskFilter{
		Status:         c.Query("status"),
		GoalID:         goalID,
		IncludeDeleted: includeDeleted(c),
	})
	if err != nil {
		a.handleServiceError(c, err, "获取任务列表失败")
		return
	}

	items := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskToPayload(task))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": items})
}

// GetTask 返回单个任务
func (a *API) GetTask(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的任务ID")
	if !ok {
		return
	}

	task, err := a.tasks.Get(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "获取任务失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": taskToPayload(*task)})
}

// CreateTask 创建任务
func (a *API) CreateTask(c *gin.Context) {
	var req taskRequest
	if !bindJSON(c, &req, "任务标题不能为空") {
		return
	}
	input, err := req.toInput(a)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	task, err := a.tasks.Create(c.Request.Context(), currentAccountID(c), input)
	if err != nil {
		a.handleServiceError(c, err, "创建任务失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": taskToPayload(*task)})
}

// UpdateTask 更新任务
func (a *API) UpdateTask(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的任务ID")
	if !ok {
		return
	}

	var req taskRequest
	if !bindJSON(c, &req, "任务标题不能为空") {
		return
	}
	input, err := req.toInput(a)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	task, err := a.tasks.Update(c.Request.Context(), currentAccountID(c), id, input)
	if err != nil {
		a.handleServiceError(c, err, "更新任务失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": taskToPayload(*task)})
}

// CompleteTask 将任务标记为完成并发放奖励
func (a *API) CompleteTask(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的任务ID")
	if !ok {
		return
	}

	task, award, err := a.tasks.MarkDone(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "完成任务失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": taskToPayload(*task), "award": xpAwardPayload(award)})
}

// DeleteTask 软删除任务
func (a *API) DeleteTask(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的任务ID")
	if !ok {
		return
	}

	task, err := a.tasks.Delete(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "删除任务失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": taskToPayload(*task)})
}

// RestoreTask 恢复被删除的任务
func (a *API) RestoreTask(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的任务ID")
	if !ok {
		return
	}

	task, err := a.tasks.Restore(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "恢复任务失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": taskToPayload(*task)})
}

func taskToPayload(task db.Task) gin.H {
	return mergeFields(modelFields(&task.Model), gin.H{
		"title":       task.Title,
		"description": task.Description,
		"status":      task.Status,
		"due_date":    formatDate(task.DueDate),
		"goal_id":     task.GoalID,
		"tags":        tagsToPayload(task.Tags),
	})
}

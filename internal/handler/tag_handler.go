package handler

import (
	"net/http"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/service"
	"github.com/gin-gonic/gin"
)

const tagBindMessage = "标签名称不能为空，颜色需为十六进制格式"

type tagRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color" binding:"omitempty,hexcolor"`
}

// GetTags 获取标签列表
func (a *API) GetTags(c *gin.Context) {
	tags, err := a.tags.List(c.Request.Context(), includeDeleted(c))
	if err != nil {
		a.handleServiceError(c, err, "获取标签列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tagsToPayload(tags)})
}

// GetTag 获取单个标签
func (a *API) GetTag(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的标签ID")
	if !ok {
		return
	}

	tag, err := a.tags.Get(c.Request.Context(), id)
	if err != nil {
		a.handleServiceError(c, err, "获取标签失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tagToPayload(*tag)})
}

// CreateTag 创建新标签
func (a *API) CreateTag(c *gin.Context) {
	var req tagRequest
	if !bindJSON(c, &req, tagBindMessage) {
		return
	}

	tag, err := a.tags.Create(c.Request.Context(), service.TagInput{Name: req.Name, Color: req.Color})
	if err != nil {
		a.handleServiceError(c, err, "创建标签失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "标签创建成功", "tag": tagToPayload(*tag)})
}

// UpdateTag 更新标签
func (a *API) UpdateTag(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的标签ID")
	if !ok {
		return
	}

	var req tagRequest
	if !bindJSON(c, &req, tagBindMessage) {
		return
	}

	tag, err := a.tags.Update(c.Request.Context(), id, service.TagInput{Name: req.Name, Color: req.Color})
	if err != nil {
		a.handleServiceError(c, err, "更新标签失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "标签更新成功", "tag": tagToPayload(*tag)})
}

// DeleteTag 软删除标签
func (a *API) DeleteTag(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的标签ID")
	if !ok {
		return
	}

	tag, err := a.tags.Delete(c.Request.Context(), id)
	if err != nil {
		a.handleServiceError(c, err, "删除标签失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "标签删除成功", "tag": tagToPayload(*tag)})
}

// RestoreTag 恢复被删除的标签
func (a *API) RestoreTag(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的标签ID")
	if !ok {
		return
	}

	tag, err := a.tags.Restore(c.Request.Context(), id)
	if err != nil {
		a.handleServiceError(c, err, "恢复标签失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tagToPayload(*tag)})
}

func tagToPayload(tag db.Tag) gin.H {
	return mergeFields(modelFields(&tag.Model), gin.H{
		"name":  tag.Name,
		"color": tag.Color,
	})
}

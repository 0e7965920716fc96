package handler

import (
	"net/http"

	"github.com/betterlyfe/internal/db"
	"github.com/gin-gonic/gin"
)

type profileRequest struct {
	Biography string `json:"biography"`
}

// GetProfile 返回当前账户的个人资料，不存在时自动创建
func (a *API) GetProfile(c *gin.Context) {
	profile, err := a.profiles.Get(c.Request.Context(), currentAccountID(c))
	if err != nil {
		a.handleServiceError(c, err, "获取个人资料失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profileToPayload(*profile)})
}

// UpdateProfile 更新个人简介
func (a *API) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req, "请求格式不正确") {
		return
	}

	profile, err := a.profiles.UpdateBiography(c.Request.Context(), currentAccountID(c), req.Biography)
	if err != nil {
		a.handleServiceError(c, err, "更新个人资料失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profileToPayload(*profile)})
}

// UploadProfilePicture 接收 multipart 字段 picture 并生成头像缩略图
func (a *API) UploadProfilePicture(c *gin.Context) {
	file, err := c.FormFile("picture")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的图片")
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取上传的图片失败")
		return
	}
	defer src.Close()

	profile, err := a.profiles.SetPicture(c.Request.Context(), currentAccountID(c), src)
	if err != nil {
		a.handleServiceError(c, err, "保存头像失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profileToPayload(*profile)})
}

// DeleteProfile 软删除个人资料
func (a *API) DeleteProfile(c *gin.Context) {
	profile, err := a.profiles.Delete(c.Request.Context(), currentAccountID(c))
	if err != nil {
		a.handleServiceError(c, err, "删除个人资料失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profileToPayload(*profile)})
}

// RestoreProfile 恢复被删除的个人资料
func (a *API) RestoreProfile(c *gin.Context) {
	profile, err := a.profiles.Restore(c.Request.Context(), currentAccountID(c))
	if err != nil {
		a.handleServiceError(c, err, "恢复个人资料失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profileToPayload(*profile)})
}

func profileToPayload(profile db.Profile) gin.H {
	return mergeFields(modelFields(&profile.Model), gin.H{
		"account_id":  profile.AccountID,
		"biography":   profile.Biography,
		"picture_url": profile.PictureURL,
	})
}

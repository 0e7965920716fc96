package handler

import (
	"net/http"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/service"
	"github.com/gin-gonic/gin"
)

type badgeRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	XPRequired  int    `json:"xp_required"`
}

func (r badgeRequest) toInput() service.BadgeInput {
	return service.BadgeInput{
		Name:        r.Name,
		Description: r.Description,
		Icon:        r.Icon,
		XPRequired:  r.XPRequired,
	}
}

// ListBadges 返回徽章目录
func (a *API) ListBadges(c *gin.Context) {
	badges, err := a.badges.List(c.Request.Context(), includeDeleted(c))
	if err != nil {
		a.handleServiceError(c, err, "获取徽章列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": badgesToPayload(badges)})
}

// GetBadge 返回单个徽章
func (a *API) GetBadge(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的徽章ID")
	if !ok {
		return
	}

	badge, err := a.badges.Get(c.Request.Context(), id)
	if err != nil {
		a.handleServiceError(c, err, "获取徽章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"badge": badgeToPayload(*badge)})
}

// CreateBadge 创建徽章
func (a *API) CreateBadge(c *gin.Context) {
	var req badgeRequest
	if !bindJSON(c, &req, "徽章名称不能为空") {
		return
	}

	badge, err := a.badges.Create(c.Request.Context(), req.toInput())
	if err != nil {
		a.handleServiceError(c, err, "创建徽章失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"badge": badgeToPayload(*badge)})
}

// UpdateBadge 更新徽章
func (a *API) UpdateBadge(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的徽章ID")
	if !ok {
		return
	}

	var req badgeRequest
	if !bindJSON(c, &req, "徽章名称不能为空") {
		return
	}

	badge, err := a.badges.Update(c.Request.Context(), id, req.toInput())
	if err != nil {
		a.handleServiceError(c, err, "更新徽章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"badge": badgeToPayload(*badge)})
}

// DeleteBadge 软删除徽章
func (a *API) DeleteBadge(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的徽章ID")
	if !ok {
		return
	}

	badge, err := a.badges.Delete(c.Request.Context(), id)
	if err != nil {
		a.handleServiceError(c, err, "删除徽章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"badge": badgeToPayload(*badge)})
}

// RestoreBadge 恢复被删除的徽章
func (a *API) RestoreBadge(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的徽章ID")
	if !ok {
		return
	}

	badge, err := a.badges.Restore(c.Request.Context(), id)
	if err != nil {
		a.handleServiceError(c, err, "恢复徽章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"badge": badgeToPayload(*badge)})
}

// ListEligibleBadges 返回当前账户可领取的徽章
func (a *API) ListEligibleBadges(c *gin.Context) {
	badges, err := a.badges.Eligible(c.Request.Context(), currentAccountID(c))
	if err != nil {
		a.handleServiceError(c, err, "获取可领取徽章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": badgesToPayload(badges)})
}

// AwardBadge 为当前账户领取指定徽章
func (a *API) AwardBadge(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的徽章ID")
	if !ok {
		return
	}

	awarded, err := a.badges.Award(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "领取徽章失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"awarded": awardedToPayload(*awarded)})
}

// ClaimEligibleBadges 一次领取全部符合条件的徽章
func (a *API) ClaimEligibleBadges(c *gin.Context) {
	granted, err := a.badges.AwardEligible(c.Request.Context(), currentAccountID(c))
	if err != nil {
		a.handleServiceError(c, err, "领取徽章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"awarded": awardedListToPayload(granted)})
}

// ListAwardedBadges 返回当前账户已获得的徽章
func (a *API) ListAwardedBadges(c *gin.Context) {
	items, err := a.badges.Awarded(c.Request.Context(), currentAccountID(c), includeDeleted(c))
	if err != nil {
		a.handleServiceError(c, err, "获取已获得徽章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"awarded": awardedListToPayload(items)})
}

// RevokeAwardedBadge 软删除一条徽章发放记录
func (a *API) RevokeAwardedBadge(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的记录ID")
	if !ok {
		return
	}

	awarded, err := a.badges.Revoke(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "删除徽章记录失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"awarded": awardedToPayload(*awarded)})
}

// RestoreAwardedBadge 恢复被删除的徽章发放记录
func (a *API) RestoreAwardedBadge(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的记录ID")
	if !ok {
		return
	}

	awarded, err := a.badges.Reinstate(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "恢复徽章记录失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"awarded": awardedToPayload(*awarded)})
}

func badgeToPayload(badge db.Badge) gin.H {
	return mergeFields(modelFields(&badge.Model), gin.H{
		"name":        badge.Name,
		"description": badge.Description,
		"icon":        badge.Icon,
		"xp_required": badge.XPRequired,
	})
}

func badgesToPayload(badges []db.Badge) []gin.H {
	items := make([]gin.H, 0, len(badges))
	for _, badge := range badges {
		items = append(items, badgeToPayload(badge))
	}
	return items
}

func awardedToPayload(item db.AwardedBadge) gin.H {
	payload := mergeFields(modelFields(&item.Model), gin.H{
		"badge_id": item.BadgeID,
	})
	if item.Badge.ID == item.BadgeID {
		payload["badge"] = badgeToPayload(item.Badge)
	}
	return payload
}

func awardedListToPayload(items []db.AwardedBadge) []gin.H {
	payload := make([]gin.H, 0, len(items))
	for _, item := range items {
		payload = append(payload, awardedToPayload(item))
	}
	return payload
}

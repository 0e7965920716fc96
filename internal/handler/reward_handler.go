package handler

import (
	"net/http"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/service"
	"github.com/gin-gonic/gin"
)

type rewardRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	CostXP      *int   `json:"cost_xp"`
	RewardType  string `json:"reward_type"`
}

func (r rewardRequest) toInput() service.RewardInput {
	return service.RewardInput{
		Name:        r.Name,
		Description: r.Description,
		CostXP:      r.CostXP,
		RewardType:  r.RewardType,
	}
}

// ListRewards 返回奖励目录
func (a *API) ListRewards(c *gin.Context) {
	rewards, err := a.rewards.List(c.Request.Context(), includeDeleted(c))
	if err != nil {
		a.handleServiceError(c, err, "获取奖励列表失败")
		return
	}

	items := make([]gin.H, 0, len(rewards))
	for _, reward := range rewards {
		items = append(items, rewardToPayload(reward))
	}
	c.JSON(http.StatusOK, gin.H{"rewards": items})
}

// GetReward 返回单个奖励
func (a *API) GetReward(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的奖励ID")
	if !ok {
		return
	}

	reward, err := a.rewards.Get(c.Request.Context(), id)
	if err != nil {
		a.handleServiceError(c, err, "获取奖励失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reward": rewardToPayload(*reward)})
}

// CreateReward 创建奖励
func (a *API) CreateReward(c *gin.Context) {
	var req rewardRequest
	if !bindJSON(c, &req, "奖励名称不能为空") {
		return
	}

	reward, err := a.rewards.Create(c.Request.Context(), req.toInput())
	if err != nil {
		a.handleServiceError(c, err, "创建奖励失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reward": rewardToPayload(*reward)})
}

// UpdateReward 更新奖励
func (a *API) UpdateReward(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的奖励ID")
	if !ok {
		return
	}

	var req rewardRequest
	if !bindJSON(c, &req, "奖励名称不能为空") {
		return
	}

	reward, err := a.rewards.Update(c.Request.Context(), id, req.toInput())
	if err != nil {
		a.handleServiceError(c, err, "更新奖励失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reward": rewardToPayload(*reward)})
}

// DeleteReward 软删除奖励
func (a *API) DeleteReward(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的奖励ID")
	if !ok {
		return
	}

	reward, err := a.rewards.Delete(c.Request.Context(), id)
	if err != nil {
		a.handleServiceError(c, err, "删除奖励失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reward": rewardToPayload(*reward)})
}

// RestoreReward 恢复被删除的奖励
func (a *API) RestoreReward(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的奖励ID")
	if !ok {
		return
	}

	reward, err := a.rewards.Restore(c.Request.Context(), id)
	if err != nil {
		a.handleServiceError(c, err, "恢复奖励失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reward": rewardToPayload(*reward)})
}

// AcquireReward 将奖励加入当前账户的库存
func (a *API) AcquireReward(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的奖励ID")
	if !ok {
		return
	}

	purchase, err := a.rewards.Acquire(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "兑换奖励失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": purchaseToPayload(*purchase)})
}

// ListInventory 返回当前账户持有的奖励，?unused=1 只看未使用的
func (a *API) ListInventory(c *gin.Context) {
	items, err := a.rewards.Inventory(c.Request.Context(), currentAccountID(c), service.InventoryFilter{
		Unused:         c.Query("unused") == "1" || c.Query("unused") == "true",
		IncludeDeleted: includeDeleted(c),
	})
	if err != nil {
		a.handleServiceError(c, err, "获取库存失败")
		return
	}

	payload := make([]gin.H, 0, len(items))
	for _, item := range items {
		payload = append(payload, purchaseToPayload(item))
	}
	c.JSON(http.StatusOK, gin.H{"items": payload})
}

// GetInventoryItem 返回单条库存记录
func (a *API) GetInventoryItem(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的库存ID")
	if !ok {
		return
	}

	item, err := a.rewards.GetPurchase(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "获取库存失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": purchaseToPayload(*item)})
}

// UseInventoryItem 使用一件持有的奖励，重复使用不会报错
func (a *API) UseInventoryItem(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的库存ID")
	if !ok {
		return
	}

	item, changed, err := a.rewards.Use(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "使用奖励失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": purchaseToPayload(*item), "changed": changed})
}

// DeleteInventoryItem 软删除库存记录
func (a *API) DeleteInventoryItem(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的库存ID")
	if !ok {
		return
	}

	item, err := a.rewards.DeletePurchase(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "删除库存失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": purchaseToPayload(*item)})
}

// RestoreInventoryItem 恢复被删除的库存记录
func (a *API) RestoreInventoryItem(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的库存ID")
	if !ok {
		return
	}

	item, err := a.rewards.RestorePurchase(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "恢复库存失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": purchaseToPayload(*item)})
}

func rewardToPayload(reward db.Reward) gin.H {
	return mergeFields(modelFields(&reward.Model), gin.H{
		"name":        reward.Name,
		"description": reward.Description,
		"cost_xp":     reward.CostXP,
		"reward_type": reward.RewardType,
	})
}

func purchaseToPayload(item db.PurchasedReward) gin.H {
	payload := mergeFields(modelFields(&item.Model), gin.H{
		"reward_id": item.RewardID,
		"is_used":   item.IsUsed,
	})
	if item.Reward.ID == item.RewardID {
		payload["reward"] = rewardToPayload(item.Reward)
	}
	return payload
}

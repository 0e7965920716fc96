package service

import (
	"context"
	"testing"

	"github.com/betterlyfe/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewardServiceCatalog(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewRewardService(gdb, nil)
	ctx := context.Background()

	reward, err := svc.Create(ctx, RewardInput{Name: "看一场电影"})
	require.NoError(t, err)
	assert.Equal(t, 100, reward.CostXP)
	assert.Equal(t, db.RewardTypeItem, reward.RewardType)

	_, err = svc.Create(ctx, RewardInput{Name: "看一场电影"})
	require.ErrorIs(t, err, ErrRewardExists)

	_, err = svc.Create(ctx, RewardInput{Name: "皮肤", RewardType: "coupon"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	cost := 30
	updated, err := svc.Update(ctx, reward.ID, RewardInput{Name: "看电影", CostXP: &cost, RewardType: db.RewardTypePrivilege})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.CostXP)
	assert.Equal(t, db.RewardTypePrivilege, updated.RewardType)
}

func TestRewardServiceUseIsOneShot(t *testing.T) {
	gdb := setupServiceTestDB(t)
	account := createTestAccount(t, gdb, "alice")
	svc := NewRewardService(gdb, nil)
	ctx := context.Background()

	reward, err := svc.Create(ctx, RewardInput{Name: "奶茶"})
	require.NoError(t, err)
	purchase, err := svc.Acquire(ctx, account.ID, reward.ID)
	require.NoError(t, err)
	assert.False(t, purchase.IsUsed)

	used, changed, err := svc.Use(ctx, account.ID, purchase.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, used.IsUsed)

	again, changed, err := svc.Use(ctx, account.ID, purchase.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, again.IsUsed)

	// 使用奖励不改变经验
	assert.Zero(t, reloadAccount(t, gdb, account.ID).XP)
}

func TestRewardServiceInventoryKeepsDeletedCatalogItems(t *testing.T) {
	gdb := setupServiceTestDB(t)
	alice := createTestAccount(t, gdb, "alice")
	bob := createTestAccount(t, gdb, "bob")
	svc := NewRewardService(gdb, nil)
	ctx := context.Background()

	reward, err := svc.Create(ctx, RewardInput{Name: "休息一天"})
	require.NoError(t, err)
	purchase, err := svc.Acquire(ctx, alice.ID, reward.ID)
	require.NoError(t, err)
	_, err = svc.Acquire(ctx, alice.ID, reward.ID)
	require.NoError(t, err)

	_, err = svc.Delete(ctx, reward.ID)
	require.NoError(t, err)
	_, err = svc.Acquire(ctx, alice.ID, reward.ID)
	require.ErrorIs(t, err, ErrRewardNotFound)

	items, err := svc.Inventory(ctx, alice.ID, InventoryFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "休息一天", items[0].Reward.Name)

	_, _, err = svc.Use(ctx, bob.ID, purchase.ID)
	require.ErrorIs(t, err, ErrPurchaseNotFound)

	_, _, err = svc.Use(ctx, alice.ID, purchase.ID)
	require.NoError(t, err)
	unused, err := svc.Inventory(ctx, alice.ID, InventoryFilter{Unused: true})
	require.NoError(t, err)
	assert.Len(t, unused, 1)
}

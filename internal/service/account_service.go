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
)

// MinPasswordLength 为注册时密码的最小长度
const MinPasswordLength = 8

// AccountService 负责账户注册、认证以及经验值账本
type AccountService struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

// RegisterInput 定义注册账户时可提交的字段
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

// LevelProgress 描述账户在当前等级内的进度
type LevelProgress struct {
	XP             int `json:"xp"`
	Level          int `json:"level"`
	LevelStartedAt int `json:"level_started_at"`
	NextLevelAt    int `json:"next_level_at"`
}

// NewAccountService 构造 AccountService
func NewAccountService(gdb *gorm.DB, log *logger.Logger) *AccountService {
	return &AccountService{db: gdb, log: logger.OrNop(log).With("service", "account"), now: time.Now}
}

// Register 创建新账户，用户名在包括墓碑在内的全部记录中唯一
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*db.Account, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, invalidArgument("username is required")
	}
	if len(input.Password) < MinPasswordLength {
		return nil, invalidArgument("password must be at least %d characters", MinPasswordLength)
	}

	hashed, err := db.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := db.Account{
		Username:  username,
		Password:  hashed,
		Email:     strings.TrimSpace(input.Email),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		IsActive:  true,
		Level:     gamification.StartingLevel,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.log.Info("account registered", "account_id", account.ID, "username", account.Username)
	return &account, nil
}

// Authenticate 校验用户名与密码，仅活动且启用的账户可以登录
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*db.Account, error) {
	var account db.Account
	if err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&account).Error; err != nil {
		return nil, translateLookup(err, ErrInvalidCredential, "find account")
	}
	if !account.IsActive || !account.CheckPassword(password) {
		return nil, ErrInvalidCredential
	}
	return &account, nil
}

// Get 根据 ID 获取活动账户
func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*db.Account, error) {
	var account db.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, translateLookup(err, ErrAccountNotFound, "get account")
	}
	return &account, nil
}

// List 返回账户集合，includeDeleted 为 true 时包含墓碑
func (s *AccountService) List(ctx context.Context, includeDeleted bool) ([]db.Account, error) {
	var accounts []db.Account
	if err := view(s.db.WithContext(ctx), includeDeleted).
		Order("username ASC").
		Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// AddXP 手动为账户发放经验
func (s *AccountService) AddXP(ctx context.Context, id uuid.UUID, amount int) (*XPAward, error) {
	var award *XPAward
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		award, err = awardXP(ctx, tx, s.log, id, amount, SourceManual)
		return err
	})
	if err != nil {
		return nil, err
	}
	return award, nil
}

// Progress 返回账户当前等级的起止经验
func (s *AccountService) Progress(ctx context.Context, id uuid.UUID) (*LevelProgress, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &LevelProgress{
		XP:             account.XP,
		Level:          account.Level,
		LevelStartedAt: gamification.LevelFloor(account.Level),
		NextLevelAt:    gamification.NextLevelAt(account.Level),
	}, nil
}

// Delete 软删除账户
func (s *AccountService) Delete(ctx context.Context, id uuid.UUID) (*db.Account, error) {
	return softDelete[db.Account](ctx, s.db, id, unscoped, ErrAccountNotFound, s.now())
}

// Restore 恢复被软删除的账户
func (s *AccountService) Restore(ctx context.Context, id uuid.UUID) (*db.Account, error) {
	return restoreDeleted[db.Account](ctx, s.db, id, unscoped, ErrAccountNotFound)
}

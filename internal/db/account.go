package db

import (
	"errors"
	"strings"

	"github.com/betterlyfe/internal/gamification"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Account 定义了用户账户模型，同时承载经验值与等级
// XP 与 Level 只增不减：经验累加后由 SyncLevel 逐级推导 Level
type Account struct {
	Model
	Username  string `gorm:"size:150;uniqueIndex;not null"`
	Password  string `gorm:"not null" json:"-"`
	Email     string `gorm:"size:254"`
	FirstName string `gorm:"size:150"`
	LastName  string `gorm:"size:150"`
	IsActive  bool   `gorm:"not null;default:true"`
	XP        int    `gorm:"not null;default:0"`
	Level     int    `gorm:"not null;default:1"`
}

// SyncLevel 按当前经验从已有等级逐级推导，返回本次提升的等级数
func (a *Account) SyncLevel() int {
	before := max(a.Level, gamification.StartingLevel)
	a.Level = gamification.Relevel(a.XP, a.Level)
	return a.Level - before
}

// FullName 返回去除首尾空白后的姓名
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// HashPassword 使用 bcrypt 生成密码哈希
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword 校验明文密码与存储的哈希是否匹配
func (a *Account) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password)) == nil
}

// EnsureAccount 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的账户。
// 已被软删除的同名账户同样视为存在。
func EnsureAccount(gdb *gorm.DB, username, password string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if gdb == nil {
		return errors.New("database not initialized")
	}

	var existing Account
	if err := gdb.Unscoped().Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := HashPassword(trimmedPassword)
		if err != nil {
			return err
		}

		return gdb.Create(&Account{
			Username: trimmedUser,
			Password: hashed,
			IsActive: true,
			Level:    gamification.StartingLevel,
		}).Error
	}

	return nil
}

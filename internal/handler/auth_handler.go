package handler

import (
	"net/http"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionAccountKey  = "account_id"
	sessionUsernameKey = "username"
	contextAccountKey  = "account_id"
)

type registerRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type addXPRequest struct {
	Amount *int `json:"amount" binding:"required"`
}

// Register 注册新账户并直接登录
func (a *API) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req, "请填写用户名与密码") {
		return
	}

	account, err := a.accounts.Register(c.Request.Context(), service.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		a.handleServiceError(c, err, "注册失败")
		return
	}

	if !a.startSession(c, account) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": accountToPayload(*account)})
}

// Login 校验用户名与密码并写入会话
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "请填写用户名与密码") {
		return
	}

	account, err := a.accounts.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		a.handleServiceError(c, err, "登录失败")
		return
	}

	if !a.startSession(c, account) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": accountToPayload(*account)})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// AuthRequired 要求会话中存在仍然有效的账户
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		raw, _ := session.Get(sessionAccountKey).(string)
		accountID, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}

		if _, err := a.accounts.Get(c.Request.Context(), accountID); err != nil {
			session.Clear()
			_ = session.Save()
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}

		c.Set(contextAccountKey, accountID)
		c.Next()
	}
}

// Me 返回当前账户
func (a *API) Me(c *gin.Context) {
	account, err := a.accounts.Get(c.Request.Context(), currentAccountID(c))
	if err != nil {
		a.handleServiceError(c, err, "获取账户失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": accountToPayload(*account)})
}

// GetXP 返回当前账户的经验与等级进度
func (a *API) GetXP(c *gin.Context) {
	progress, err := a.accounts.Progress(c.Request.Context(), currentAccountID(c))
	if err != nil {
		a.handleServiceError(c, err, "获取经验失败")
		return
	}
	c.JSON(http.StatusOK, progress)
}

// AddXP 为当前账户手动发放经验
func (a *API) AddXP(c *gin.Context) {
	var req addXPRequest
	if !bindJSON(c, &req, "请填写经验值") {
		return
	}

	award, err := a.accounts.AddXP(c.Request.Context(), currentAccountID(c), *req.Amount)
	if err != nil {
		a.handleServiceError(c, err, "发放经验失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"award": xpAwardPayload(award)})
}

func (a *API) startSession(c *gin.Context, account *db.Account) bool {
	session := sessions.Default(c)
	session.Set(sessionAccountKey, account.ID.String())
	session.Set(sessionUsernameKey, account.Username)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return false
	}
	return true
}

// currentAccountID 读取 AuthRequired 写入的账户 ID
func currentAccountID(c *gin.Context) uuid.UUID {
	if value, ok := c.Get(contextAccountKey); ok {
		if id, ok := value.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

func accountToPayload(account db.Account) gin.H {
	return mergeFields(modelFields(&account.Model), gin.H{
		"username":   account.Username,
		"email":      account.Email,
		"first_name": account.FirstName,
		"last_name":  account.LastName,
		"full_name":  account.FullName(),
		"is_active":  account.IsActive,
		"xp":         account.XP,
		"level":      account.Level,
	})
}

// DeleteMe 软删除当前账户并退出登录
func (a *API) DeleteMe(c *gin.Context) {
	account, err := a.accounts.Delete(c.Request.Context(), currentAccountID(c))
	if err != nil {
		a.handleServiceError(c, err, "删除账户失败")
		return
	}

	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"account": accountToPayload(*account)})
}

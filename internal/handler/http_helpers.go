package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/gamification"
	"github.com/betterlyfe/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const dateFormat = "2006-01-02"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// handleServiceError 按错误类别映射状态码，未知错误记录日志并返回 fallback
func (a *API) handleServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredential):
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidArgument):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConstraintViolation):
		respondError(c, http.StatusConflict, err.Error())
	default:
		a.log.Error(fallback, "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}

func parseIDParam(c *gin.Context, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(key)))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", key)
	}
	return id, nil
}

// pathID 解析路径中的 ID，失败时直接写入 400
func pathID(c *gin.Context, key, message string) (uuid.UUID, bool) {
	id, err := parseIDParam(c, key)
	if err != nil {
		respondError(c, http.StatusBadRequest, message)
		return uuid.Nil, false
	}
	return id, true
}

func parseIDList(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, raw := range values {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		id, err := uuid.Parse(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", trimmed)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOptionalID(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, fmt.Errorf("invalid id %q", *raw)
	}
	return &id, nil
}

// includeDeleted 读取 ?include_deleted=1，返回全部视图
func includeDeleted(c *gin.Context) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(c.Query("include_deleted")))
	return err == nil && parsed
}

func (a *API) parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation(dateFormat, raw, a.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", raw)
	}
	return &parsed, nil
}

// parseDay 解析日期并归一化为 UTC 零点的日历日期，与存储形式一致
func (a *API) parseDay(raw string) (*time.Time, error) {
	parsed, err := a.parseDate(raw)
	if err != nil || parsed == nil {
		return nil, err
	}
	day := gamification.CalendarDate(*parsed, a.loc)
	return &day, nil
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDay(*t)
}

// formatDay 输出存储的日历日期；驱动返回的时区不影响结果
func formatDay(t time.Time) string {
	return t.UTC().Format(dateFormat)
}

// modelFields 返回所有实体共享的序列化字段
func modelFields(m *db.Model) gin.H {
	return gin.H{
		"id":         m.ID,
		"created_at": m.CreatedAt,
		"updated_at": m.UpdatedAt,
		"is_deleted": m.IsDeleted,
		"deleted_at": m.DeletedAtPtr(),
	}
}

func mergeFields(base gin.H, extra gin.H) gin.H {
	for key, value := range extra {
		base[key] = value
	}
	return base
}

func tagsToPayload(tags []db.Tag) []gin.H {
	items := make([]gin.H, 0, len(tags))
	for _, tag := range tags {
		items = append(items, tagToPayload(tag))
	}
	return items
}

func xpAwardPayload(award *service.XPAward) any {
	if award == nil {
		return nil
	}
	return gin.H{
		"amount":     award.Amount,
		"source":     award.Source,
		"xp":         award.XP,
		"level":      award.Level,
		"levels_up":  award.LevelsUp,
		"leveled_up": award.LeveledUp(),
	}
}

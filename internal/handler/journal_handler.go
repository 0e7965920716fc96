package handler

import (
	"net/http"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/service"
	"github.com/gin-gonic/gin"
)

type journalRequest struct {
	EntryDate  string   `json:"entry_date"`
	Title      string   `json:"title"`
	Content    string   `json:"content" binding:"required"`
	MoodRating *int     `json:"mood_rating"`
	TagIDs     []string `json:"tag_ids"`
}

func (r journalRequest) toInput(a *API) (service.JournalInput, error) {
	entryDate, err := a.parseDate(r.EntryDate)
	if err != nil {
		return service.JournalInput{}, err
	}
	tagIDs, err := parseIDList(r.TagIDs)
	if err != nil {
		return service.JournalInput{}, err
	}
	return service.JournalInput{
		EntryDate:  entryDate,
		Title:      r.Title,
		Content:    r.Content,
		MoodRating: r.MoodRating,
		TagIDs:     tagIDs,
	}, nil
}

// ListJournalEntries 返回当前账户的日记
func (a *API) ListJournalEntries(c *gin.Context) {
	start, end, ok := a.queryRange(c, false)
	if !ok {
		return
	}

	entries, err := a.journal.List(c.Request.Context(), currentAccountID(c), service.JournalFilter{
		Start:          start,
		End:            end,
		IncludeDeleted: includeDeleted(c),
	})
	if err != nil {
		a.handleServiceError(c, err, "获取日记列表失败")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		items = append(items, journalToPayload(entry))
	}
	c.JSON(http.StatusOK, gin.H{"entries": items})
}

// GetJournalEntry 返回单篇日记及渲染后的 HTML
func (a *API) GetJournalEntry(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的日记ID")
	if !ok {
		return
	}

	entry, err := a.journal.Get(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "获取日记失败")
		return
	}

	html, err := service.RenderJournal(entry.Content)
	if err != nil {
		a.handleServiceError(c, err, "渲染日记失败")
		return
	}

	payload := journalToPayload(*entry)
	payload["html"] = html
	c.JSON(http.StatusOK, gin.H{"entry": payload})
}

// CreateJournalEntry 创建日记，同一天只能有一篇
func (a *API) CreateJournalEntry(c *gin.Context) {
	var req journalRequest
	if !bindJSON(c, &req, "日记内容不能为空") {
		return
	}
	input, err := req.toInput(a)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := a.journal.Create(c.Request.Context(), currentAccountID(c), input)
	if err != nil {
		a.handleServiceError(c, err, "创建日记失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": journalToPayload(*entry)})
}

// UpdateJournalEntry 更新日记
func (a *API) UpdateJournalEntry(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的日记ID")
	if !ok {
		return
	}

	var req journalRequest
	if !bindJSON(c, &req, "日记内容不能为空") {
		return
	}
	input, err := req.toInput(a)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := a.journal.Update(c.Request.Context(), currentAccountID(c), id, input)
	if err != nil {
		a.handleServiceError(c, err, "更新日记失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": journalToPayload(*entry)})
}

// DeleteJournalEntry 软删除日记
func (a *API) DeleteJournalEntry(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的日记ID")
	if !ok {
		return
	}

	entry, err := a.journal.Delete(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "删除日记失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": journalToPayload(*entry)})
}

// RestoreJournalEntry 恢复被删除的日记
func (a *API) RestoreJournalEntry(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的日记ID")
	if !ok {
		return
	}

	entry, err := a.journal.Restore(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		a.handleServiceError(c, err, "恢复日记失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": journalToPayload(*entry)})
}

func journalToPayload(entry db.JournalEntry) gin.H {
	return mergeFields(modelFields(&entry.Model), gin.H{
		"entry_date":  formatDay(entry.EntryDate),
		"title":       entry.Title,
		"content":     entry.Content,
		"mood_rating": entry.MoodRating,
		"tags":        tagsToPayload(entry.Tags),
	})
}

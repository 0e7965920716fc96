package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/betterlyfe/internal/db"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setupTestAPI(t *testing.T) (*API, *db.Account) {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(db.Options{Driver: "sqlite", Path: dsn, Silent: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	account := db.Account{Username: "tester", Password: "hashed", IsActive: true, Level: 1}
	if err := gdb.Create(&account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}

	api := NewAPI(gdb, Options{Location: time.UTC, UploadDir: t.TempDir(), UploadURL: "/uploads"})
	return api, &account
}

// newTestContext 构造一个已登录账户的请求上下文
func newTestContext(method, target string, payload any, accountID uuid.UUID, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, target, &body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params
	c.Set(contextAccountKey, accountID)
	return c, w
}

func idParam(id uuid.UUID) gin.Param {
	return gin.Param{Key: "id", Value: id.String()}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestCreateTagDuplicateName(t *testing.T) {
	api, account := setupTestAPI(t)

	c, w := newTestContext(http.MethodPost, "/api/tags", map[string]any{"name": "Go"}, account.ID)
	api.CreateTag(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	c, w = newTestContext(http.MethodPost, "/api/tags", map[string]any{"name": "Go"}, account.ID)
	api.CreateTag(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", w.Code)
	}
}

func TestCreateTagInvalidColor(t *testing.T) {
	api, account := setupTestAPI(t)

	for _, color := range []string{"red", "#12345G", "123456"} {
		c, w := newTestContext(http.MethodPost, "/api/tags", map[string]any{"name": "Go", "color": color}, account.ID)
		api.CreateTag(c)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("color %q: expected status 400, got %d", color, w.Code)
		}
		if got := decodeBody(t, w)["error"]; got != tagBindMessage {
			t.Fatalf("color %q: expected bind error %q, got %v", color, tagBindMessage, got)
		}
	}

	var count int64
	if err := api.DB().Model(&db.Tag{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count tags: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no tags to be created, got %d", count)
	}
}

func TestUpdateTagInvalidColor(t *testing.T) {
	api, account := setupTestAPI(t)

	c, w := newTestContext(http.MethodPost, "/api/tags", map[string]any{"name": "Go", "color": "#00ADD8"}, account.ID)
	api.CreateTag(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	tag := decodeBody(t, w)["tag"].(map[string]any)
	id := uuid.MustParse(tag["id"].(string))

	c, w = newTestContext(http.MethodPut, "/api/tags/"+id.String(), map[string]any{"name": "Go", "color": "blue"}, account.ID, idParam(id))
	api.UpdateTag(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	var stored db.Tag
	if err := api.DB().First(&stored, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to load tag: %v", err)
	}
	if stored.Color != "#00ADD8" {
		t.Fatalf("expected color to stay #00ADD8, got %q", stored.Color)
	}
}

func TestGoalTargetDateKeepsCalendarDay(t *testing.T) {
	api, account := setupTestAPI(t)
	api.loc = time.FixedZone("UTC+8", 8*3600)

	c, w := newTestContext(http.MethodPost, "/api/goals", map[string]any{"name": "Marathon", "target_date": "2026-10-20"}, account.ID)
	api.CreateGoal(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	goal := decodeBody(t, w)["goal"].(map[string]any)
	if goal["target_date"] != "2026-10-20" {
		t.Fatalf("expected target_date 2026-10-20, got %v", goal["target_date"])
	}

	var stored db.Goal
	if err := api.DB().First(&stored, "id = ?", goal["id"]).Error; err != nil {
		t.Fatalf("failed to load goal: %v", err)
	}
	if want := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC); stored.TargetDate == nil || !stored.TargetDate.Equal(want) {
		t.Fatalf("expected stored target date %v, got %v", want, stored.TargetDate)
	}
}

func TestFormatDayUsesStoredCalendarDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	// 驱动以本地时区解码 UTC 零点时，本地年月日是前一天
	stored := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC).In(ny)
	if got := formatDay(stored); got != "2026-10-16" {
		t.Fatalf("expected 2026-10-16, got %s", got)
	}
	if got := formatDate(&stored); got != "2026-10-16" {
		t.Fatalf("expected 2026-10-16, got %v", got)
	}
	if got := formatDate(nil); got != nil {
		t.Fatalf("expected nil for missing date, got %v", got)
	}
}

func TestCompleteTaskAwardsOnce(t *testing.T) {
	api, account := setupTestAPI(t)

	c, w := newTestContext(http.MethodPost, "/api/tasks", map[string]any{"title": "Write report"}, account.ID)
	api.CreateTask(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	task := decodeBody(t, w)["task"].(map[string]any)
	taskID := uuid.MustParse(task["id"].(string))

	c, w = newTestContext(http.MethodPost, "/api/tasks/"+taskID.String()+"/complete", nil, account.ID, idParam(taskID))
	api.CompleteTask(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	award, ok := decodeBody(t, w)["award"].(map[string]any)
	if !ok {
		t.Fatalf("expected award on first completion, got %s", w.Body.String())
	}
	if award["xp"].(float64) != 10 {
		t.Fatalf("expected xp 10, got %v", award["xp"])
	}

	c, w = newTestContext(http.MethodPost, "/api/tasks/"+taskID.String()+"/complete", nil, account.ID, idParam(taskID))
	api.CompleteTask(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if award := decodeBody(t, w)["award"]; award != nil {
		t.Fatalf("expected no award on repeat completion, got %v", award)
	}
}

func TestCompleteHabitWithDate(t *testing.T) {
	api, account := setupTestAPI(t)

	c, w := newTestContext(http.MethodPost, "/api/habits", map[string]any{"name": "Read"}, account.ID)
	api.CreateHabit(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	habitID := uuid.MustParse(decodeBody(t, w)["habit"].(map[string]any)["id"].(string))

	for i, date := range []string{"2024-05-10", "2024-05-11"} {
		c, w = newTestContext(http.MethodPost, "/api/habits/"+habitID.String()+"/complete",
			map[string]any{"date": date}, account.ID, idParam(habitID))
		api.CompleteHabit(c)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		habit := decodeBody(t, w)["habit"].(map[string]any)
		if int(habit["streak"].(float64)) != i+1 {
			t.Fatalf("expected streak %d, got %v", i+1, habit["streak"])
		}
		if habit["last_completed"] != date {
			t.Fatalf("expected last_completed %s, got %v", date, habit["last_completed"])
		}
	}

	c, w = newTestContext(http.MethodPost, "/api/habits/"+habitID.String()+"/complete",
		map[string]any{"date": "05/12/2024"}, account.ID, idParam(habitID))
	api.CompleteHabit(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed date, got %d", w.Code)
	}
}

func TestCreateJournalEntryDuplicateDate(t *testing.T) {
	api, account := setupTestAPI(t)

	payload := map[string]any{"entry_date": "2024-05-10", "content": "hello"}
	c, w := newTestContext(http.MethodPost, "/api/journal", payload, account.ID)
	api.CreateJournalEntry(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	c, w = newTestContext(http.MethodPost, "/api/journal", payload, account.ID)
	api.CreateJournalEntry(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", w.Code)
	}
}

func TestGetGoalInvalidAndMissingID(t *testing.T) {
	api, account := setupTestAPI(t)

	c, w := newTestContext(http.MethodGet, "/api/goals/abc", nil, account.ID, gin.Param{Key: "id", Value: "abc"})
	api.GetGoal(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	missing := uuid.New()
	c, w = newTestContext(http.MethodGet, "/api/goals/"+missing.String(), nil, account.ID, idParam(missing))
	api.GetGoal(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestDeleteAndRestoreGoal(t *testing.T) {
	api, account := setupTestAPI(t)

	c, w := newTestContext(http.MethodPost, "/api/goals", map[string]any{"name": "Run 10k", "target_value": "10"}, account.ID)
	api.CreateGoal(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	goal := decodeBody(t, w)["goal"].(map[string]any)
	if goal["target_value"] != "10.00" {
		t.Fatalf("expected target_value 10.00, got %v", goal["target_value"])
	}
	goalID := uuid.MustParse(goal["id"].(string))

	c, w = newTestContext(http.MethodDelete, "/api/goals/"+goalID.String(), nil, account.ID, idParam(goalID))
	api.DeleteGoal(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if deleted := decodeBody(t, w)["goal"].(map[string]any)["is_deleted"]; deleted != true {
		t.Fatalf("expected is_deleted true, got %v", deleted)
	}

	c, w = newTestContext(http.MethodGet, "/api/goals/"+goalID.String(), nil, account.ID, idParam(goalID))
	api.GetGoal(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected deleted goal to be hidden, got %d", w.Code)
	}

	c, w = newTestContext(http.MethodPost, "/api/goals/"+goalID.String()+"/restore", nil, account.ID, idParam(goalID))
	api.RestoreGoal(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if deleted := decodeBody(t, w)["goal"].(map[string]any)["is_deleted"]; deleted != false {
		t.Fatalf("expected is_deleted false, got %v", deleted)
	}
}

func TestUseInventoryItemIsOneShot(t *testing.T) {
	api, account := setupTestAPI(t)

	reward := db.Reward{Name: "Movie night", CostXP: 100, RewardType: db.RewardTypePrivilege}
	if err := api.DB().Create(&reward).Error; err != nil {
		t.Fatalf("failed to seed reward: %v", err)
	}

	c, w := newTestContext(http.MethodPost, "/api/rewards/"+reward.ID.String()+"/acquire", nil, account.ID, idParam(reward.ID))
	api.AcquireReward(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	itemID := uuid.MustParse(decodeBody(t, w)["item"].(map[string]any)["id"].(string))

	for i, wantChanged := range []bool{true, false} {
		c, w = newTestContext(http.MethodPost, "/api/inventory/"+itemID.String()+"/use", nil, account.ID, idParam(itemID))
		api.UseInventoryItem(c)
		if w.Code != http.StatusOK {
			t.Fatalf("use #%d: expected status 200, got %d", i+1, w.Code)
		}
		if changed := decodeBody(t, w)["changed"]; changed != wantChanged {
			t.Fatalf("use #%d: expected changed=%v, got %v", i+1, wantChanged, changed)
		}
	}
}

func TestAwardBadgeRequiresXP(t *testing.T) {
	api, account := setupTestAPI(t)

	badge := db.Badge{Name: "Centurion", XPRequired: 100}
	if err := api.DB().Create(&badge).Error; err != nil {
		t.Fatalf("failed to seed badge: %v", err)
	}

	c, w := newTestContext(http.MethodPost, "/api/badges/"+badge.ID.String()+"/award", nil, account.ID, idParam(badge.ID))
	api.AwardBadge(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	c, w = newTestContext(http.MethodPost, "/api/me/xp", map[string]any{"amount": 120}, account.ID)
	api.AddXP(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	c, w = newTestContext(http.MethodPost, "/api/badges/"+badge.ID.String()+"/award", nil, account.ID, idParam(badge.ID))
	api.AwardBadge(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	c, w = newTestContext(http.MethodPost, "/api/badges/"+badge.ID.String()+"/award", nil, account.ID, idParam(badge.ID))
	api.AwardBadge(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for duplicate award, got %d", w.Code)
	}
}

func TestAddXPRejectsNegativeAmount(t *testing.T) {
	api, account := setupTestAPI(t)

	c, w := newTestContext(http.MethodPost, "/api/me/xp", map[string]any{"amount": -1}, account.ID)
	api.AddXP(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

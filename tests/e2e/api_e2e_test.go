package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/gamification"
	"github.com/betterlyfe/internal/handler"
	"github.com/betterlyfe/internal/router"
	"github.com/gin-gonic/gin"
)

type e2eSuite struct {
	handler   http.Handler
	public    httpClient
	user      httpClient
	baseURL   string
	uploadDir string
	rewardID  string
	badgeIDs  []string
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler, withJar bool) *localClient {
	var jar http.CookieJar
	if withJar {
		if j, err := cookiejar.New(nil); err == nil {
			jar = j
		}
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

func TestE2E_AllInterfaces(t *testing.T) {
	suite := newE2ESuite(t)

	t.Run("public endpoints", suite.testPublicEndpoints)
	suite.register(t)
	t.Run("goals and tasks", suite.testGoalsAndTasks)
	t.Run("habits", suite.testHabits)
	t.Run("journal", suite.testJournal)
	t.Run("rewards and badges", suite.testRewardsAndBadges)
	t.Run("profile", suite.testProfile)
	t.Run("logout", suite.testLogout)
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:e2e-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(db.Options{Driver: "sqlite", Path: dsn, Silent: true})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	reward := db.Reward{Name: "Movie Night", CostXP: 150, RewardType: db.RewardTypePrivilege}
	if err := gdb.Create(&reward).Error; err != nil {
		t.Fatalf("failed to seed reward: %v", err)
	}
	badges := []db.Badge{
		{Name: "First Steps", XPRequired: 10},
		{Name: "Centurion", XPRequired: 100},
		{Name: "Legend", XPRequired: 10000},
	}
	if err := gdb.Create(&badges).Error; err != nil {
		t.Fatalf("failed to seed badges: %v", err)
	}

	uploadDir := t.TempDir()
	api := handler.NewAPI(gdb, handler.Options{Location: time.UTC, UploadDir: uploadDir, UploadURL: "/uploads"})
	engine := router.SetupRouter(api, "test-session-secret", uploadDir, "/uploads")

	badgeIDs := make([]string, 0, len(badges))
	for _, badge := range badges {
		badgeIDs = append(badgeIDs, badge.ID.String())
	}

	return &e2eSuite{
		handler:   engine,
		public:    newLocalClient(engine, false),
		user:      newLocalClient(engine, true),
		baseURL:   "http://example.test",
		uploadDir: uploadDir,
		rewardID:  reward.ID.String(),
		badgeIDs:  badgeIDs,
	}
}

func (s *e2eSuite) register(t *testing.T) {
	t.Helper()
	resp := s.mustRequestJSON(t, s.user, http.MethodPost, "/auth/register", map[string]interface{}{
		"username":   "alice",
		"password":   "e2e-secret",
		"first_name": "Alice",
		"last_name":  "Johnson",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed, status %d: %s", resp.StatusCode, readBody(t, resp))
	}

	resp = s.mustRequestJSON(t, s.user, http.MethodPost, "/auth/register", map[string]interface{}{
		"username": "alice",
		"password": "another-secret",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register expected 409, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testPublicEndpoints(t *testing.T) {
	resp := s.mustRequest(t, s.public, http.MethodGet, "/ping", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ping: expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, "pong") {
		t.Fatalf("ping: unexpected body %q", body)
	}

	for _, path := range []string{"/api/me", "/api/goals", "/api/habits", "/api/badges"} {
		resp := s.mustRequest(t, s.public, http.MethodGet, path, nil, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s without session expected 401, got %d", path, resp.StatusCode)
		}
	}

	resp = s.mustRequestJSON(t, s.public, http.MethodPost, "/auth/login", map[string]interface{}{
		"username": "nobody",
		"password": "whatever",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login expected 401, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testGoalsAndTasks(t *testing.T) {
	var goalResp struct {
		Goal map[string]interface{} `json:"goal"`
	}
	s.expectJSON(t, http.MethodPost, "/api/goals", map[string]interface{}{
		"name":                 "Launch ZenGarden",
		"target_value":         "100",
		"target_date":          "2026-01-31",
		"completion_xp_reward": 60,
	}, http.StatusCreated, &goalResp)
	goalID := goalResp.Goal["id"].(string)

	s.expectJSON(t, http.MethodPut, "/api/goals/"+goalID+"/progress", map[string]interface{}{
		"current_value": "42.5",
	}, http.StatusOK, &goalResp)
	if goalResp.Goal["current_value"] != "42.50" {
		t.Fatalf("expected current_value 42.50, got %v", goalResp.Goal["current_value"])
	}

	var taskResp struct {
		Task  map[string]interface{} `json:"task"`
		Award map[string]interface{} `json:"award"`
	}
	s.expectJSON(t, http.MethodPost, "/api/tasks", map[string]interface{}{
		"title":   "Design wireframes",
		"goal_id": goalID,
	}, http.StatusCreated, &taskResp)
	taskID := taskResp.Task["id"].(string)

	s.expectJSON(t, http.MethodPost, "/api/tasks/"+taskID+"/done", nil, http.StatusOK, &taskResp)
	if taskResp.Award == nil || taskResp.Award["xp"].(float64) != gamification.TaskCompletionXP {
		t.Fatalf("expected task award, got %+v", taskResp.Award)
	}
	taskResp.Award = nil
	s.expectJSON(t, http.MethodPost, "/api/tasks/"+taskID+"/done", nil, http.StatusOK, &taskResp)
	if taskResp.Award != nil {
		t.Fatalf("expected no second task award, got %+v", taskResp.Award)
	}

	var completeResp struct {
		Goal  map[string]interface{} `json:"goal"`
		Award map[string]interface{} `json:"award"`
	}
	s.expectJSON(t, http.MethodPost, "/api/goals/"+goalID+"/complete", nil, http.StatusOK, &completeResp)
	if completeResp.Goal["status"] != db.GoalStatusCompleted {
		t.Fatalf("expected completed goal, got %v", completeResp.Goal["status"])
	}
	if completeResp.Award == nil || completeResp.Award["xp"].(float64) != 70 {
		t.Fatalf("expected xp 70 after goal completion, got %+v", completeResp.Award)
	}

	// 删除后默认视图不可见，include_deleted 视图可见，恢复后重新可见
	s.expectJSON(t, http.MethodDelete, "/api/tasks/"+taskID, nil, http.StatusOK, nil)
	s.expectStatus(t, http.MethodGet, "/api/tasks/"+taskID, http.StatusNotFound)

	var listResp struct {
		Tasks []map[string]interface{} `json:"tasks"`
	}
	s.expectJSON(t, http.MethodGet, "/api/tasks", nil, http.StatusOK, &listResp)
	if len(listResp.Tasks) != 0 {
		t.Fatalf("expected no active tasks, got %d", len(listResp.Tasks))
	}
	s.expectJSON(t, http.MethodGet, "/api/tasks?include_deleted=1", nil, http.StatusOK, &listResp)
	if len(listResp.Tasks) != 1 || listResp.Tasks[0]["is_deleted"] != true {
		t.Fatalf("expected one tombstoned task, got %+v", listResp.Tasks)
	}

	s.expectJSON(t, http.MethodPost, "/api/tasks/"+taskID+"/restore", nil, http.StatusOK, nil)
	s.expectStatus(t, http.MethodGet, "/api/tasks/"+taskID, http.StatusOK)
}

func (s *e2eSuite) testHabits(t *testing.T) {
	var habitResp struct {
		Habit map[string]interface{} `json:"habit"`
		Award map[string]interface{} `json:"award"`
	}
	s.expectJSON(t, http.MethodPost, "/api/habits", map[string]interface{}{
		"name":      "Meditate",
		"frequency": db.HabitFrequencyDaily,
	}, http.StatusCreated, &habitResp)
	habitID := habitResp.Habit["id"].(string)

	for i, day := range []string{"2025-03-01", "2025-03-02", "2025-03-03"} {
		s.expectJSON(t, http.MethodPost, "/api/habits/"+habitID+"/complete", map[string]interface{}{
			"date": day,
		}, http.StatusOK, &habitResp)
		if int(habitResp.Habit["streak"].(float64)) != i+1 {
			t.Fatalf("expected streak %d on %s, got %v", i+1, day, habitResp.Habit["streak"])
		}
	}

	s.expectJSON(t, http.MethodPut, "/api/habits/"+habitID+"/entries", map[string]interface{}{
		"date":      "2025-03-05",
		"completed": false,
	}, http.StatusOK, nil)

	var entriesResp struct {
		Entries []map[string]interface{} `json:"entries"`
	}
	s.expectJSON(t, http.MethodGet, "/api/habits/"+habitID+"/entries?start=2025-03-01&end=2025-03-31", nil, http.StatusOK, &entriesResp)
	if len(entriesResp.Entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entriesResp.Entries))
	}

	var statsResp struct {
		CompletedCount int `json:"completed_count"`
		TargetCount    int `json:"target_count"`
		LongestStreak  int `json:"longest_streak"`
	}
	s.expectJSON(t, http.MethodGet, "/api/habits/"+habitID+"/stats?start=2025-03-01&end=2025-03-10", nil, http.StatusOK, &statsResp)
	if statsResp.CompletedCount != 3 || statsResp.TargetCount != 10 || statsResp.LongestStreak != 3 {
		t.Fatalf("unexpected stats %+v", statsResp)
	}
}

func (s *e2eSuite) testJournal(t *testing.T) {
	var entryResp struct {
		Entry map[string]interface{} `json:"entry"`
	}
	s.expectJSON(t, http.MethodPost, "/api/journal", map[string]interface{}{
		"entry_date":  "2025-03-01",
		"title":       "Day one",
		"content":     "# Hello\n<script>alert(1)</script>",
		"mood_rating": 4,
	}, http.StatusCreated, &entryResp)
	entryID := entryResp.Entry["id"].(string)

	s.expectStatusJSON(t, http.MethodPost, "/api/journal", map[string]interface{}{
		"entry_date": "2025-03-01",
		"content":    "again",
	}, http.StatusConflict)
	s.expectStatusJSON(t, http.MethodPost, "/api/journal", map[string]interface{}{
		"entry_date":  "2025-03-02",
		"content":     "moody",
		"mood_rating": 9,
	}, http.StatusBadRequest)

	s.expectJSON(t, http.MethodGet, "/api/journal/"+entryID, nil, http.StatusOK, &entryResp)
	html, _ := entryResp.Entry["html"].(string)
	if !strings.Contains(html, "<h1>Hello</h1>") || strings.Contains(html, "<script>") {
		t.Fatalf("unexpected rendered html %q", html)
	}
}

func (s *e2eSuite) testRewardsAndBadges(t *testing.T) {
	var itemResp struct {
		Item    map[string]interface{} `json:"item"`
		Changed bool                   `json:"changed"`
	}
	s.expectJSON(t, http.MethodPost, "/api/rewards/"+s.rewardID+"/acquire", nil, http.StatusCreated, &itemResp)
	itemID := itemResp.Item["id"].(string)

	s.expectJSON(t, http.MethodPost, "/api/inventory/"+itemID+"/use", nil, http.StatusOK, &itemResp)
	if !itemResp.Changed || itemResp.Item["is_used"] != true {
		t.Fatalf("expected first use to change item, got %+v", itemResp)
	}
	s.expectJSON(t, http.MethodPost, "/api/inventory/"+itemID+"/use", nil, http.StatusOK, &itemResp)
	if itemResp.Changed {
		t.Fatal("expected second use to be a no-op")
	}

	var inventoryResp struct {
		Items []map[string]interface{} `json:"items"`
	}
	s.expectJSON(t, http.MethodGet, "/api/inventory?unused=1", nil, http.StatusOK, &inventoryResp)
	if len(inventoryResp.Items) != 0 {
		t.Fatalf("expected no unused items, got %d", len(inventoryResp.Items))
	}

	// 此时经验为 10 + 60 + 3*5 = 85，补到 100 以上
	var xpResp struct {
		Award map[string]interface{} `json:"award"`
	}
	s.expectJSON(t, http.MethodPost, "/api/me/xp", map[string]interface{}{"amount": 20}, http.StatusOK, &xpResp)
	if xpResp.Award["xp"].(float64) != 105 || xpResp.Award["level"].(float64) != 2 {
		t.Fatalf("unexpected xp award %+v", xpResp.Award)
	}

	var badgesResp struct {
		Badges []map[string]interface{} `json:"badges"`
	}
	s.expectJSON(t, http.MethodGet, "/api/badges/eligible", nil, http.StatusOK, &badgesResp)
	if len(badgesResp.Badges) != 2 {
		t.Fatalf("expected 2 eligible badges, got %d", len(badgesResp.Badges))
	}

	s.expectStatus(t, http.MethodPost, "/api/badges/"+s.badgeIDs[2]+"/award", http.StatusBadRequest)

	var awardedResp struct {
		Awarded []map[string]interface{} `json:"awarded"`
	}
	s.expectJSON(t, http.MethodPost, "/api/me/badges/claim", nil, http.StatusOK, &awardedResp)
	if len(awardedResp.Awarded) != 2 {
		t.Fatalf("expected 2 badges claimed, got %d", len(awardedResp.Awarded))
	}
	s.expectStatus(t, http.MethodPost, "/api/badges/"+s.badgeIDs[0]+"/award", http.StatusConflict)

	s.expectJSON(t, http.MethodGet, "/api/badges/eligible", nil, http.StatusOK, &badgesResp)
	if len(badgesResp.Badges) != 0 {
		t.Fatalf("expected no eligible badges after claim, got %d", len(badgesResp.Badges))
	}
}

func (s *e2eSuite) testProfile(t *testing.T) {
	var profileResp struct {
		Profile map[string]interface{} `json:"profile"`
	}
	s.expectJSON(t, http.MethodPut, "/api/profile", map[string]interface{}{"biography": "Gardener of habits."}, http.StatusOK, &profileResp)
	if profileResp.Profile["biography"] != "Gardener of habits." {
		t.Fatalf("unexpected biography %v", profileResp.Profile["biography"])
	}

	resp := s.uploadTestImage(t)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload picture expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	decodeJSON(t, resp, &profileResp)
	pictureURL, _ := profileResp.Profile["picture_url"].(string)
	if !strings.HasPrefix(pictureURL, "/uploads/avatar-") {
		t.Fatalf("unexpected picture url %q", pictureURL)
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, pictureURL, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("uploaded picture expected 200, got %d", resp.StatusCode)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("failed to decode stored picture: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Fatalf("expected small image to keep its size, got %v", img.Bounds())
	}
}

func (s *e2eSuite) testLogout(t *testing.T) {
	s.expectStatus(t, http.MethodPost, "/auth/logout", http.StatusOK)
	s.expectStatus(t, http.MethodGet, "/api/me", http.StatusUnauthorized)

	resp := s.mustRequestJSON(t, s.user, http.MethodPost, "/auth/login", map[string]interface{}{
		"username": "alice",
		"password": "e2e-secret",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login expected 200, got %d", resp.StatusCode)
	}

	var xpResp struct {
		XP    int `json:"xp"`
		Level int `json:"level"`
	}
	s.expectJSON(t, http.MethodGet, "/api/me/xp", nil, http.StatusOK, &xpResp)
	if xpResp.XP != 105 || xpResp.Level != 2 {
		t.Fatalf("unexpected progress %+v", xpResp)
	}
}

func (s *e2eSuite) expectJSON(t *testing.T, method, path string, payload map[string]interface{}, code int, dst interface{}) {
	t.Helper()
	var resp *http.Response
	if payload == nil {
		resp = s.mustRequest(t, s.user, method, path, nil, nil)
	} else {
		resp = s.mustRequestJSON(t, s.user, method, path, payload)
	}
	defer resp.Body.Close()
	if resp.StatusCode != code {
		t.Fatalf("%s %s expected %d, got %d: %s", method, path, code, resp.StatusCode, readBody(t, resp))
	}
	if dst != nil {
		decodeJSON(t, resp, dst)
	}
}

func (s *e2eSuite) expectStatus(t *testing.T, method, path string, code int) {
	t.Helper()
	s.expectJSON(t, method, path, nil, code, nil)
}

func (s *e2eSuite) expectStatusJSON(t *testing.T, method, path string, payload map[string]interface{}, code int) {
	t.Helper()
	s.expectJSON(t, method, path, payload, code, nil)
}

func (s *e2eSuite) uploadTestImage(t *testing.T) *http.Response {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, "picture", "avatar.png"))
	partHeader.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(buf.Bytes()); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	headers := map[string]string{
		"Content-Type": writer.FormDataContentType(),
	}
	return s.mustRequest(t, s.user, http.MethodPost, "/api/profile/picture", body, headers)
}

func (s *e2eSuite) mustRequest(t *testing.T, client httpClient, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.baseURL+path, body)
	if err != nil {
		t.Fatalf("failed to build request %s %s: %v", method, path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func (s *e2eSuite) mustRequestJSON(t *testing.T, client httpClient, method, path string, payload map[string]interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	return s.mustRequest(t, client, method, path, bytes.NewReader(data), headers)
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	body := readBody(t, resp)
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		t.Fatalf("failed to decode json: %v\nbody=%s", err, body)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(data)
}

package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peer-review-api/controllers"
	"peer-review-api/models"
	"peer-review-api/services"
	"peer-review-api/storage/inmem"
)

const testSecret = "routes-test-secret"

type testServer struct {
	t      *testing.T
	router *gin.Engine
	notes  *services.NotificationService
	users  map[string]*models.User
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := inmem.New()
	notes := services.NewNotificationService(db, nil, "")
	workflow := services.NewReviewWorkflowService(db, notes, 15)
	users := services.NewUserService(db)

	router := gin.New()
	SetupRoutes(router, Handlers{
		Auth:          controllers.NewAuthController(users, testSecret, 1),
		Papers:        controllers.NewPaperController(workflow),
		Deadlines:     controllers.NewDeadlineController(services.NewDeadlineService(db, notes)),
		Notifications: controllers.NewNotificationController(notes),
		Hubs:          controllers.NewHubController(services.NewHubService(db, workflow)),
	}, testSecret, db)

	s := &testServer{t: t, router: router, notes: notes, users: map[string]*models.User{}, tokens: map[string]string{}}
	t.Cleanup(notes.Wait)

	for name, role := range map[string]string{
		"author": models.RoleAuthor,
		"editor": models.RoleEditor,
		"admin":  models.RoleAdmin,
		"r1":     models.RoleReviewer,
		"r2":     models.RoleReviewer,
		"r3":     models.RoleReviewer,
		"r4":     models.RoleReviewer,
	} {
		u, err := users.CreateUser(context.Background(), services.CreateUserInput{
			Name:     name,
			Email:    name + "@example.org",
			Password: "password-" + name,
			Role:     role,
		})
		require.NoError(t, err)
		s.users[name] = u
	}
	return s
}

func (s *testServer) do(method, path, as string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+s.login(as))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (s *testServer) login(name string) string {
	s.t.Helper()
	if tok, ok := s.tokens[name]; ok {
		return tok
	}
	w, out := s.do(http.MethodPost, "/api/v1/login", "", map[string]string{
		"email":    name + "@example.org",
		"password": "password-" + name,
	})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	tok, _ := out["token"].(string)
	require.NotEmpty(s.t, tok)
	s.tokens[name] = tok
	return tok
}

func paperField(out map[string]interface{}, key string) interface{} {
	paper, _ := out["paper"].(map[string]interface{})
	return paper[key]
}

// openReview drives a fresh paper to "in review" with r1..r3 accepted.
func (s *testServer) openReview() string {
	s.t.Helper()
	w, out := s.do(http.MethodPost, "/api/v1/papers", "author", map[string]interface{}{
		"title":    "Consensus under partial synchrony",
		"abstract": "We revisit an old result.",
		"keywords": []string{"distributed systems"},
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	id := paperField(out, "id").(string)

	w, out = s.do(http.MethodPost, "/api/v1/papers/"+id+"/submit", "author", nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(s.t, string(models.StatusUnderNegotiation), paperField(out, "status"))

	for _, r := range []string{"r1", "r2", "r3"} {
		w, _ = s.do(http.MethodPost, "/api/v1/papers/"+id+"/reviewers", "editor", map[string]string{"reviewerId": s.users[r].ID})
		require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
		w, out = s.do(http.MethodPost, "/api/v1/papers/"+id+"/slots/accept", r, nil)
		require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.Equal(s.t, string(models.StatusInReview), paperField(out, "status"))
	assert.EqualValues(s.t, 0, paperField(out, "availableSlots"))
	return id
}

func review(recommendation string) map[string]interface{} {
	return map[string]interface{}{
		"scores": map[string]int{
			"originality": 4, "methodology": 4, "significance": 3,
			"clarity": 5, "references": 4, "overall": 4,
		},
		"commentsToAuthor":     "Solid work.",
		"confidentialComments": "editor eyes only",
		"recommendation":       recommendation,
	}
}

func TestHealthAndAuth(t *testing.T) {
	s := newTestServer(t)

	w, out := s.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["status"])

	w, _ = s.do(http.MethodGet, "/api/v1/papers", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/login", "", map[string]string{"email": "author@example.org", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/login", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out = s.do(http.MethodGet, "/api/v1/profile", "r1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	user, _ := out["user"].(map[string]interface{})
	assert.Equal(t, "r1@example.org", user["email"])
	assert.NotContains(t, w.Body.String(), "passwordHash")
}

func TestReviewLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := s.openReview()

	// a fourth reviewer finds every slot taken
	w, _ := s.do(http.MethodPost, "/api/v1/papers/"+id+"/reviewers", "editor", map[string]string{"reviewerId": s.users["r4"].ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w, out := s.do(http.MethodPost, "/api/v1/papers/"+id+"/slots/accept", "r4", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotEmpty(t, out["error"])

	w, out = s.do(http.MethodPost, "/api/v1/papers/"+id+"/reviews", "r1", map[string]interface{}{"recommendation": "accept"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	for i, r := range []string{"r1", "r2"} {
		w, out = s.do(http.MethodPost, "/api/v1/papers/"+id+"/reviews", r, review("minor_revision"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, string(models.StatusInReview), paperField(out, "status"), "after review %d", i+1)
	}

	w, _ = s.do(http.MethodPost, "/api/v1/papers/"+id+"/reviews", "r1", review("accept"))
	assert.Equal(t, http.StatusConflict, w.Code)

	// reviews stay hidden from the author while the round is open
	w, out = s.do(http.MethodGet, "/api/v1/papers/"+id+"/reviews", "author", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, out["items"])

	w, out = s.do(http.MethodPost, "/api/v1/papers/"+id+"/reviews", "r3", review("major_revision"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, string(models.StatusNeedingCorrections), paperField(out, "status"))

	w, out = s.do(http.MethodGet, "/api/v1/papers/"+id+"/reviews", "author", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items, _ := out["items"].([]interface{})
	assert.Len(t, items, 3)
	assert.NotContains(t, w.Body.String(), "editor eyes only")

	w, _ = s.do(http.MethodPost, "/api/v1/papers/"+id+"/check-completion", "editor", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, out = s.do(http.MethodPost, "/api/v1/papers/"+id+"/corrections", "author", map[string]string{"notes": "Addressed all comments."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(models.StatusInReview), paperField(out, "status"))
	assert.EqualValues(t, 2, paperField(out, "reviewRound"))

	w, out = s.do(http.MethodGet, "/api/v1/assignments/mine", "r2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine, _ := out["items"].([]interface{})
	assert.Len(t, mine, 1)

	s.notes.Wait()
	w, out = s.do(http.MethodGet, "/api/v1/notifications/counter", "author", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Greater(t, out["unread"].(float64), float64(0))

	w, out = s.do(http.MethodPatch, "/api/v1/notifications/read-all", "author", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["ok"])
	w, out = s.do(http.MethodGet, "/api/v1/notifications/counter", "author", nil)
	assert.EqualValues(t, 0, out["unread"])
}

func TestRoleGuardsAndErrors(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodPost, "/api/v1/hubs", "r1", map[string]string{"name": "Systems"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, out := s.do(http.MethodPost, "/api/v1/hubs", "editor", map[string]interface{}{"name": "Systems", "reviewers": []string{s.users["r1"].ID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	hub, _ := out["hub"].(map[string]interface{})
	hubID := hub["id"].(string)

	w, _ = s.do(http.MethodGet, "/api/v1/hubs/"+hubID, "author", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/papers/missing", "editor", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/admin/deadlines", "editor", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, out = s.do(http.MethodPost, "/api/v1/admin/deadlines/sweep", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, out["summary"])

	w, out = s.do(http.MethodPost, "/api/v1/papers", "author", map[string]interface{}{"title": "Hub paper", "hubId": hubID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := paperField(out, "id").(string)

	// a draft cannot ask for publication
	w, _ = s.do(http.MethodPost, "/api/v1/papers/"+id+"/publication/request", "author", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, out = s.do(http.MethodPut, "/api/v1/papers/"+id+"/phase-timestamps/kickoff", "author", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, out["written"])
	w, out = s.do(http.MethodPut, "/api/v1/papers/"+id+"/phase-timestamps/kickoff", "author", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["written"])

	w, _ = s.do(http.MethodPut, "/api/v1/papers/"+id+"/phase-timestamps/bad-key!", "author", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// submitting to the hub invites its roster
	w, _ = s.do(http.MethodPost, "/api/v1/papers/"+id+"/submit", "author", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, out = s.do(http.MethodGet, "/api/v1/papers/"+id+"/assignments/"+s.users["r1"].ID+"/deadline", "r1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	deadline, _ := out["deadline"].(map[string]interface{})
	assert.Equal(t, string(models.AssignmentPending), deadline["status"])

	w, _ = s.do(http.MethodPut, "/api/v1/papers/"+id+"/assignments/"+s.users["r1"].ID+"/deadline", "editor", map[string]int{"days": 20})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHubOwnerDecidesOverHTTP(t *testing.T) {
	s := newTestServer(t)

	w, out := s.do(http.MethodPost, "/api/v1/hubs", "editor", map[string]interface{}{"name": "Theory", "ownerId": s.users["r4"].ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	hub, _ := out["hub"].(map[string]interface{})
	hubID := hub["id"].(string)

	w, out = s.do(http.MethodPost, "/api/v1/papers", "author", map[string]interface{}{"title": "Lower bounds", "hubId": hubID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := paperField(out, "id").(string)
	w, _ = s.do(http.MethodPost, "/api/v1/papers/"+id+"/submit", "author", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPost, "/api/v1/papers/"+id+"/final-decision", "r1", map[string]string{"decision": "reject"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(http.MethodPost, "/api/v1/papers/"+id+"/final-decision", "author", map[string]string{"decision": "accept"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, out = s.do(http.MethodPost, "/api/v1/papers/"+id+"/final-decision", "r4", map[string]string{"decision": "reject", "comment": "Out of scope."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(models.StatusRejected), paperField(out, "status"))
}

func TestReviewerSeesBlindPaper(t *testing.T) {
	s := newTestServer(t)
	id := s.openReview()

	w, _ := s.do(http.MethodGet, "/api/v1/papers/"+id, "author", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "author@example.org")

	w, out := s.do(http.MethodGet, "/api/v1/papers/"+id, "r1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "author@example.org")
	assert.NotContains(t, w.Body.String(), s.users["author"].ID)
	assert.Nil(t, paperField(out, "mainAuthor"))

	w, _ = s.do(http.MethodGet, "/api/v1/papers/"+id, "editor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "author@example.org")
}

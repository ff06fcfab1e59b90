package httpd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
	"github.com/RubachokBoss/peer-review/review-service/internal/repository"
	"github.com/RubachokBoss/peer-review/review-service/internal/service"
)

type capturingPublisher struct {
	mu      sync.Mutex
	reports []models.ReviewReportEvent
}

func (p *capturingPublisher) Connect(ctx context.Context) error { return nil }

func (p *capturingPublisher) PublishReviewCompleted(ctx context.Context, report models.ReviewReportEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, report)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) published() []models.ReviewReportEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ReviewReportEvent(nil), p.reports...)
}

type testEnv struct {
	router    chi.Router
	publisher *capturingPublisher
	eventRepo *repository.MemorySubmissionEventRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := zerolog.Nop()
	eventRepo := repository.NewMemorySubmissionEventRepository()
	reviewRepo := repository.NewMemoryReviewRepository()
	publisher := &capturingPublisher{}

	handler := NewHandler(
		service.NewReviewService(reviewRepo, log),
		service.NewDistributorService(eventRepo, log),
		service.NewAuthService(log),
		publisher,
		log,
	)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	return &testEnv{router: router, publisher: publisher, eventRepo: eventRepo}
}

func (e *testEnv) seedDelivered(t *testing.T, assignmentID string, subs map[string]string) {
	t.Helper()

	for studentID, submissionID := range subs {
		_, err := e.eventRepo.Save(context.Background(), &models.SubmissionDeliveredEvent{
			AssignmentID: assignmentID,
			StudentID:    studentID,
			SubmissionID: submissionID,
		}, nil)
		require.NoError(t, err)
	}
}

func (e *testEnv) do(t *testing.T, method, target, userID, roles string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	r := httptest.NewRequest(method, target, &buf)
	if userID != "" {
		r.Header.Set("X-User-Id", userID)
	}
	if roles != "" {
		r.Header.Set("X-User-Roles", roles)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func startProcessBody(automatic bool, pairs []models.AssignmentPair) models.ReviewProcessCreate {
	return models.ReviewProcessCreate{
		AssignmentID:  "A1",
		AutomaticMode: automatic,
		Deadline:      time.Now().Add(48 * time.Hour),
		Assignments:   pairs,
		Rubric:        []models.RubricItem{{Criterion: "Clarity"}, {Criterion: "Correctness"}},
	}
}

func TestStartProcessEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedDelivered(t, "A1", map[string]string{"s-1": "SUB-1", "s-2": "SUB-2"})

	w := env.do(t, http.MethodPost, "/api/v1/reviews/process", "t-1", "teacher",
		startProcessBody(true, nil))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.StartProcessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "A1", resp.ID)

	// the reviews are visible to the teacher right away
	w = env.do(t, http.MethodGet, "/api/v1/reviews/assignment/A1", "t-1", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var reviews []models.Review
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reviews))
	require.Len(t, reviews, 2)
}

func TestStartProcessRejectedForStudent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedDelivered(t, "A1", map[string]string{"s-1": "SUB-1", "s-2": "SUB-2"})

	w := env.do(t, http.MethodPost, "/api/v1/reviews/process", "s-1", "student",
		startProcessBody(true, nil))
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/reviews/assignment/A1", "t-1", "teacher", nil)
	require.Equal(t, http.StatusNotFound, w.Code, "no reviews were created")
}

func TestStartProcessInvalidManualList(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedDelivered(t, "A1", map[string]string{"s-1": "SUB-1", "s-2": "SUB-2", "s-3": "SUB-3"})

	w := env.do(t, http.MethodPost, "/api/v1/reviews/process", "t-1", "teacher",
		startProcessBody(false, []models.AssignmentPair{
			{Reviewer: "s-1", SubmissionID: "SUB-2"},
			{Reviewer: "s-2", SubmissionID: "SUB-1"},
		}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "s-3")
}

func TestSubmitReviewEndpointPublishesReport(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedDelivered(t, "A1", map[string]string{"s-1": "SUB-1", "s-2": "SUB-2"})

	w := env.do(t, http.MethodPost, "/api/v1/reviews/process", "t-1", "teacher",
		startProcessBody(true, nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/reviews/", "s-1", "student", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var mine []models.Review
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine, 1)

	w = env.do(t, http.MethodPatch, "/api/v1/reviews/"+mine[0].ReviewID, "s-1", "student",
		models.ReviewUpdateRequest{Scores: []models.ScoreEntry{
			{Criterion: "Clarity", Score: 8},
			{Criterion: "Correctness", Score: 9},
		}})
	require.Equal(t, http.StatusNoContent, w.Code)

	reports := env.publisher.published()
	require.Len(t, reports, 1)
	require.Equal(t, mine[0].ReviewID, reports[0].ReviewID)
	require.Equal(t, mine[0].SubmissionID, reports[0].SubmissionID)
	require.Equal(t, 8.5, reports[0].Score)
}

func TestGetReviewNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/reviews/rv-missing", "s-1", "student", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitByNonOwnerIs404(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedDelivered(t, "A1", map[string]string{"s-1": "SUB-1", "s-2": "SUB-2"})

	w := env.do(t, http.MethodPost, "/api/v1/reviews/process", "t-1", "teacher",
		startProcessBody(true, nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/reviews/", "s-1", "student", nil)
	var mine []models.Review
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine, 1)

	w = env.do(t, http.MethodPatch, "/api/v1/reviews/"+mine[0].ReviewID, "s-9", "student",
		models.ReviewUpdateRequest{Scores: []models.ScoreEntry{{Criterion: "Clarity", Score: 1}}})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Empty(t, env.publisher.published())
}

func TestMissingIdentityIsForbidden(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/reviews/", "", "", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

package httpd

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
	"github.com/RubachokBoss/peer-review/review-service/pkg/utils"
)

// StartReviewProcess validates (or generates) the assignment list and
// materializes the review tasks in one go.
func (h *Handler) StartReviewProcess(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.ResolveUser(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	var payload models.ReviewProcessCreate
	if err := utils.ReadJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.AssignmentID == "" {
		writeError(w, http.StatusBadRequest, "assignmentId is required")
		return
	}
	if len(payload.Rubric) == 0 {
		writeError(w, http.StatusBadRequest, "rubrica must contain at least one criterion")
		return
	}

	verified, err := h.distributorService.BuildVerifiedAssignments(r.Context(), payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	// Only the validated list reaches the review service.
	payload.Assignments = verified

	processID, err := h.reviewService.StartProcess(r.Context(), user, payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.StartProcessResponse{
		Message: "review process started for assignment",
		ID:      processID,
	})
}

func (h *Handler) ListMyReviews(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.ResolveUser(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	status := r.URL.Query().Get("stato")
	if status != "" && !models.IsValidReviewStatus(status) {
		writeError(w, http.StatusBadRequest, "stato must be 'pending' or 'complete'")
		return
	}

	reviews, err := h.reviewService.ListMine(r.Context(), user, status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if reviews == nil {
		reviews = []models.Review{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (h *Handler) GetMyReview(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.ResolveUser(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	reviewID := chi.URLParam(r, "id")

	review, err := h.reviewService.GetMine(r.Context(), user, reviewID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if review == nil {
		writeError(w, http.StatusNotFound, "review not found")
		return
	}

	writeJSON(w, http.StatusOK, review)
}

func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.ResolveUser(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	reviewID := chi.URLParam(r, "id")

	var payload models.ReviewUpdateRequest
	if err := utils.ReadJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(payload.Scores) == 0 {
		writeError(w, http.StatusBadRequest, "valutazione must contain at least one entry")
		return
	}

	ok, err := h.reviewService.Submit(r.Context(), user, reviewID, payload.Scores)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "review not found or not accessible")
		return
	}

	h.emitReviewReport(r, user, reviewID)

	writeJSON(w, http.StatusNoContent, nil)
}

// emitReviewReport publishes the completion fact downstream. Best
// effort: the submit already succeeded, a publication failure is only
// logged.
func (h *Handler) emitReviewReport(r *http.Request, user models.UserContext, reviewID string) {
	review, err := h.reviewService.GetMine(r.Context(), user, reviewID)
	if err != nil || review == nil {
		h.logger.Error().Err(err).Str("review_id", reviewID).Msg("Failed to load review for report")
		return
	}

	report := models.ReviewReportEvent{
		SubmissionID: review.SubmissionID,
		ReviewID:     review.ReviewID,
		Score:        meanScore(review.Scores),
		DeliveredAt:  time.Now().UTC(),
	}

	if err := h.reportPublisher.PublishReviewCompleted(r.Context(), report); err != nil {
		h.logger.Error().Err(err).Str("review_id", reviewID).Msg("Failed to publish review report")
	}
}

func meanScore(scores []models.ScoreEntry) float64 {
	if len(scores) == 0 {
		return 0
	}

	var sum int
	for _, s := range scores {
		sum += s.Score
	}
	return float64(sum) / float64(len(scores))
}

func (h *Handler) ListReviewsForAssignment(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.ResolveUser(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	assignmentID := chi.URLParam(r, "assignmentID")

	reviews, err := h.reviewService.ListForAssignment(r.Context(), user, assignmentID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if len(reviews) == 0 {
		writeError(w, http.StatusNotFound, "no reviews for this assignment")
		return
	}

	writeJSON(w, http.StatusOK, reviews)
}

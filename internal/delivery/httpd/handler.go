package httpd

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/peer-review/review-service/internal/models"
	"github.com/RubachokBoss/peer-review/review-service/internal/service"
	"github.com/RubachokBoss/peer-review/review-service/internal/worker/queue"
)

type Handler struct {
	reviewService      service.ReviewService
	distributorService service.DistributorService
	authService        service.AuthService
	reportPublisher    queue.ReportPublisher
	logger             zerolog.Logger
}

func NewHandler(
	reviewService service.ReviewService,
	distributorService service.DistributorService,
	authService service.AuthService,
	reportPublisher queue.ReportPublisher,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		reviewService:      reviewService,
		distributorService: distributorService,
		authService:        authService,
		reportPublisher:    reportPublisher,
		logger:             logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)

	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/reviews", func(r chi.Router) {
			r.Post("/process", h.StartReviewProcess)
			r.Get("/", h.ListMyReviews)
			r.Get("/{id}", h.GetMyReview)
			r.Patch("/{id}", h.SubmitReview)
			r.Get("/assignment/{assignmentID}", h.ListReviewsForAssignment)
		})
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Service:   "review-service",
		Timestamp: time.Now().UTC(),
	})
}

// writeServiceError maps the typed service errors onto HTTP codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var distErr *service.DistributionError
	if errors.As(err, &distErr) {
		writeError(w, http.StatusBadRequest, distErr.Reason)
		return
	}

	var permErr *service.PermissionError
	if errors.As(err, &permErr) {
		writeError(w, http.StatusForbidden, permErr.Reason)
		return
	}

	h.logger.Error().Err(err).Msg("Internal error")
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

package handlers

import (
	"encoding/json"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/booking-analytics/internal/api/middleware"
	"github.com/dvloznov/booking-analytics/internal/jobs"
)

// JobsHandler handles flatten job endpoints.
type JobsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		publisher: publisher,
		store:     store,
		log:       log,
	}
}

// EnqueueFlatten handles POST /jobs/flatten. The body names the raw date
// folder to process.
func (h *JobsHandler) EnqueueFlatten(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventDate string `json:"event_date"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.EventDate == "" {
		middleware.WriteError(w, http.StatusBadRequest, "event_date is required")
		return
	}
	if _, err := civil.ParseDate(req.EventDate); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "event_date must be YYYY-MM-DD")
		return
	}

	job := &jobs.FlattenDateJob{EventDate: req.EventDate}
	if err := h.publisher.PublishFlattenDate(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("event_date", req.EventDate).Msg("Failed to enqueue flatten job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("event_date", job.EventDate).Msg("Flatten job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"event_date": job.EventDate,
		"status":     string(job.Status),
	})
}

// ListJobs handles GET /jobs with optional ?event_date= and ?status= filters.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		EventDate: r.URL.Query().Get("event_date"),
		Status:    jobs.JobStatus(r.URL.Query().Get("status")),
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

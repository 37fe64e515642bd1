package receiver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/booking-analytics/internal/api/middleware"
	"github.com/dvloznov/booking-analytics/internal/gcs"
)

// RawPrefix is the bucket folder raw webhook deliveries land under, one
// date folder per UTC day.
const RawPrefix = "raw"

// DefaultAllowedEventTypes is the static allow-list of scheduling event
// type URIs worth keeping. Everything else is acknowledged and dropped.
var DefaultAllowedEventTypes = []string{
	"https://api.calendly.com/event_types/d639ecd3-8718-4068-955a-436b10d72c78",
	"https://api.calendly.com/event_types/dbb4ec50-38cd-4bcd-bbff-efb7b5a6f098",
	"https://api.calendly.com/event_types/bb339e98-7a67-4af2-b584-8dbf95564312",
}

// Handler accepts webhook deliveries and writes the raw envelope to the
// object store. It never retries: the invoking platform owns retry policy.
type Handler struct {
	store   gcs.ObjectStore
	allowed map[string]bool
	log     zerolog.Logger
	now     func() time.Time
}

// NewHandler creates a webhook handler filtering on the given event type
// allow-list.
func NewHandler(store gcs.ObjectStore, allowedEventTypes []string, log zerolog.Logger) *Handler {
	allowed := make(map[string]bool, len(allowedEventTypes))
	for _, et := range allowedEventTypes {
		allowed[et] = true
	}
	return &Handler{
		store:   store,
		allowed: allowed,
		log:     log,
		now:     time.Now,
	}
}

// HandleWebhook handles POST /webhook/calendly.
//
// Responses: 400 when the body is absent, 200 both for stored deliveries and
// for filtered-out event types (filtering is not an error), 500 for anything
// that goes wrong parsing or writing.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read webhook body")
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(body) == 0 {
		h.log.Warn().Msg("Webhook delivery without body")
		middleware.WriteError(w, http.StatusBadRequest, "missing body")
		return
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.log.Error().Err(err).Msg("Failed to parse webhook body")
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	eventType := scheduledEventType(envelope)
	if !h.allowed[eventType] {
		h.log.Info().Str("event_type", eventType).Msg("Skipping event type not of interest")
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Event type not of interest"})
		return
	}

	// Re-serialize the parsed envelope so the stored object is exactly what
	// downstream parsing will see.
	data, err := json.Marshal(envelope)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to serialize webhook envelope")
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	objectName := h.rawObjectName()
	if err := h.store.PutObject(ctx, objectName, data, "application/json"); err != nil {
		h.log.Error().Err(err).Str("object", objectName).Msg("Failed to store webhook delivery")
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.Info().
		Str("event_type", eventType).
		Str("object", objectName).
		Msg("Webhook delivery stored")

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Webhook received successfully"})
}

// rawObjectName builds raw/<date>/<timestamp>_<uuid>.json. The random
// suffix keeps two deliveries within the same second from colliding.
func (h *Handler) rawObjectName() string {
	now := h.now().UTC()
	return fmt.Sprintf("%s/%s/%s_%s.json",
		RawPrefix,
		now.Format("2006-01-02"),
		now.Format("2006-01-02T15-04-05"),
		uuid.New(),
	)
}

// scheduledEventType digs payload.scheduled_event.event_type out of the
// envelope, returning "" when any step is missing.
func scheduledEventType(envelope map[string]interface{}) string {
	payload, ok := envelope["payload"].(map[string]interface{})
	if !ok {
		return ""
	}
	se, ok := payload["scheduled_event"].(map[string]interface{})
	if !ok {
		return ""
	}
	et, _ := se["event_type"].(string)
	return et
}

package events

import (
	"time"

	bigquerylib "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/booking-analytics/internal/bigquery"
)

// EventTimestampLayout is the exact wire format of the scheduling provider's
// timestamps (microsecond precision, UTC). Strings that don't match convert
// to NULL rather than failing the record.
const EventTimestampLayout = "2006-01-02T15:04:05.000000Z"

// ParseEventTimestamp reinterprets a flattened field as a TIMESTAMP value.
// Non-strings and format mismatches become NULL; this is a known lossy edge.
func ParseEventTimestamp(v interface{}) bigquerylib.NullTimestamp {
	s, ok := v.(string)
	if !ok {
		return bigquerylib.NullTimestamp{}
	}
	t, err := time.Parse(EventTimestampLayout, s)
	if err != nil {
		return bigquerylib.NullTimestamp{}
	}
	return bigquerylib.NullTimestamp{Timestamp: t.UTC(), Valid: true}
}

// BuildRow converts one flattened record (the FlattenPayload output) into a
// typed EventRow carrying the given partition date. All coercions are
// tolerant: a field of an unexpected JSON type ends up NULL or empty, never
// an error — one odd delivery must not abort the folder's batch.
func BuildRow(rec map[string]interface{}, eventDate civil.Date) *bigquery.EventRow {
	return &bigquery.EventRow{
		CancelURL:          nullString(rec["cancel_url"]),
		CreatedAt:          ParseEventTimestamp(rec["created_at"]),
		Email:              nullString(rec["email"]),
		Event:              nullString(rec["event"]),
		FirstName:          nullString(rec["first_name"]),
		InviteeScheduledBy: nullString(rec["invitee_scheduled_by"]),
		LastName:           nullString(rec["last_name"]),
		Name:               nullString(rec["name"]),
		NewInvitee:         nullString(rec["new_invitee"]),
		NoShow:             nullString(rec["no_show"]),
		OldInvitee:         nullString(rec["old_invitee"]),
		Payment:            nullString(rec["payment"]),

		QuestionsAndAnswers: questionAnswers(rec["questions_and_answers"]),

		Reconfirmation:        nullString(rec["reconfirmation"]),
		RescheduleURL:         nullString(rec["reschedule_url"]),
		Rescheduled:           nullBool(rec["rescheduled"]),
		RoutingFormSubmission: nullString(rec["routing_form_submission"]),

		ScheduledEventCreatedAt:        ParseEventTimestamp(rec["scheduled_event_created_at"]),
		ScheduledEventEndTime:          ParseEventTimestamp(rec["scheduled_event_end_time"]),
		ScheduledEventEventGuests:      stringList(rec["scheduled_event_event_guests"]),
		ScheduledEventEventMemberships: memberships(rec["scheduled_event_event_memberships"]),
		ScheduledEventEventType:        nullString(rec["scheduled_event_event_type"]),

		ScheduledEventInviteesCounterTotal:  nullInt64(rec["scheduled_event_invitees_counter_total"]),
		ScheduledEventInviteesCounterActive: nullInt64(rec["scheduled_event_invitees_counter_active"]),
		ScheduledEventInviteesCounterLimit:  nullInt64(rec["scheduled_event_invitees_counter_limit"]),

		ScheduledEventLocationLocation:  nullString(rec["scheduled_event_location_location"]),
		ScheduledEventLocationType:      nullString(rec["scheduled_event_location_type"]),
		ScheduledEventMeetingNotesHTML:  nullString(rec["scheduled_event_meeting_notes_html"]),
		ScheduledEventMeetingNotesPlain: nullString(rec["scheduled_event_meeting_notes_plain"]),

		ScheduledEventName:      nullString(rec["scheduled_event_name"]),
		ScheduledEventStartTime: ParseEventTimestamp(rec["scheduled_event_start_time"]),
		ScheduledEventStatus:    nullString(rec["scheduled_event_status"]),
		ScheduledEventUpdatedAt: ParseEventTimestamp(rec["scheduled_event_updated_at"]),
		ScheduledEventURI:       nullString(rec["scheduled_event_uri"]),

		SchedulingMethod:   nullString(rec["scheduling_method"]),
		Status:             nullString(rec["status"]),
		TextReminderNumber: nullString(rec["text_reminder_number"]),
		Timezone:           nullString(rec["timezone"]),

		TrackingUTMCampaign:    nullString(rec["tracking_utm_campaign"]),
		TrackingUTMSource:      nullString(rec["tracking_utm_source"]),
		TrackingUTMMedium:      nullString(rec["tracking_utm_medium"]),
		TrackingUTMContent:     nullString(rec["tracking_utm_content"]),
		TrackingUTMTerm:        nullString(rec["tracking_utm_term"]),
		TrackingSalesforceUUID: nullString(rec["tracking_salesforce_uuid"]),

		UpdatedAt: ParseEventTimestamp(rec["updated_at"]),
		URI:       nullString(rec["uri"]),

		EventDate: eventDate,
	}
}

func nullString(v interface{}) bigquerylib.NullString {
	s, ok := v.(string)
	if !ok {
		return bigquerylib.NullString{}
	}
	return bigquerylib.NullString{StringVal: s, Valid: true}
}

func nullBool(v interface{}) bigquerylib.NullBool {
	b, ok := v.(bool)
	if !ok {
		return bigquerylib.NullBool{}
	}
	return bigquerylib.NullBool{Bool: b, Valid: true}
}

func nullInt64(v interface{}) bigquerylib.NullInt64 {
	switch n := v.(type) {
	case float64: // encoding/json decodes all numbers as float64
		return bigquerylib.NullInt64{Int64: int64(n), Valid: true}
	case int:
		return bigquerylib.NullInt64{Int64: int64(n), Valid: true}
	case int64:
		return bigquerylib.NullInt64{Int64: n, Valid: true}
	default:
		return bigquerylib.NullInt64{}
	}
}

func stringList(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func memberships(v interface{}) []bigquery.EventMembership {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]bigquery.EventMembership, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		m := bigquery.EventMembership{}
		if s, ok := obj["user"].(string); ok {
			m.User = s
		}
		if s, ok := obj["user_email"].(string); ok {
			m.UserEmail = s
		}
		if s, ok := obj["user_name"].(string); ok {
			m.UserName = s
		}
		out = append(out, m)
	}
	return out
}

func questionAnswers(v interface{}) []bigquery.QuestionAnswer {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]bigquery.QuestionAnswer, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		qa := bigquery.QuestionAnswer{Position: nullInt64(obj["position"])}
		if s, ok := obj["answer"].(string); ok {
			qa.Answer = s
		}
		if s, ok := obj["question"].(string); ok {
			qa.Question = s
		}
		out = append(out, qa)
	}
	return out
}

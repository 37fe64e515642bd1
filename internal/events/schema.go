package events

// FieldMapping binds one output column to a path inside the webhook payload.
// The whole table is evaluated in a single pass: every column is always
// present in the output, with nil standing in for anything the payload
// doesn't carry. Renames and the unwrapping of nested counters/location
// objects are expressed here instead of a second override pass.
type FieldMapping struct {
	Column string
	Path   []string
}

// Schema is the fixed column set of the flattened events table, in the order
// the table DDL declares them. event_date is not listed here: it is derived
// from the raw folder name, never from the payload.
var Schema = []FieldMapping{
	{Column: "cancel_url", Path: []string{"cancel_url"}},
	{Column: "created_at", Path: []string{"created_at"}},
	{Column: "email", Path: []string{"email"}},
	{Column: "event", Path: []string{"event"}},
	{Column: "first_name", Path: []string{"first_name"}},
	{Column: "invitee_scheduled_by", Path: []string{"invitee_scheduled_by"}},
	{Column: "last_name", Path: []string{"last_name"}},
	{Column: "name", Path: []string{"name"}},
	{Column: "new_invitee", Path: []string{"new_invitee"}},
	{Column: "no_show", Path: []string{"no_show"}},
	{Column: "old_invitee", Path: []string{"old_invitee"}},
	{Column: "payment", Path: []string{"payment"}},
	{Column: "questions_and_answers", Path: []string{"questions_and_answers"}},
	{Column: "reconfirmation", Path: []string{"reconfirmation"}},
	{Column: "reschedule_url", Path: []string{"reschedule_url"}},
	{Column: "rescheduled", Path: []string{"rescheduled"}},
	{Column: "routing_form_submission", Path: []string{"routing_form_submission"}},
	{Column: "scheduled_event_created_at", Path: []string{"scheduled_event", "created_at"}},
	{Column: "scheduled_event_end_time", Path: []string{"scheduled_event", "end_time"}},
	{Column: "scheduled_event_event_guests", Path: []string{"scheduled_event", "event_guests"}},
	{Column: "scheduled_event_event_memberships", Path: []string{"scheduled_event", "event_memberships"}},
	{Column: "scheduled_event_event_type", Path: []string{"scheduled_event", "event_type"}},
	{Column: "scheduled_event_invitees_counter_total", Path: []string{"scheduled_event", "invitees_counter", "total"}},
	{Column: "scheduled_event_invitees_counter_active", Path: []string{"scheduled_event", "invitees_counter", "active"}},
	{Column: "scheduled_event_invitees_counter_limit", Path: []string{"scheduled_event", "invitees_counter", "limit"}},
	{Column: "scheduled_event_location_location", Path: []string{"scheduled_event", "location", "location"}},
	{Column: "scheduled_event_location_type", Path: []string{"scheduled_event", "location", "type"}},
	{Column: "scheduled_event_meeting_notes_html", Path: []string{"scheduled_event", "meeting_notes_html"}},
	{Column: "scheduled_event_meeting_notes_plain", Path: []string{"scheduled_event", "meeting_notes_plain"}},
	{Column: "scheduled_event_name", Path: []string{"scheduled_event", "name"}},
	{Column: "scheduled_event_start_time", Path: []string{"scheduled_event", "start_time"}},
	{Column: "scheduled_event_status", Path: []string{"scheduled_event", "status"}},
	{Column: "scheduled_event_updated_at", Path: []string{"scheduled_event", "updated_at"}},
	{Column: "scheduled_event_uri", Path: []string{"scheduled_event", "uri"}},
	{Column: "scheduling_method", Path: []string{"scheduling_method"}},
	{Column: "status", Path: []string{"status"}},
	{Column: "text_reminder_number", Path: []string{"text_reminder_number"}},
	{Column: "timezone", Path: []string{"timezone"}},
	{Column: "tracking_utm_campaign", Path: []string{"tracking", "utm_campaign"}},
	{Column: "tracking_utm_source", Path: []string{"tracking", "utm_source"}},
	{Column: "tracking_utm_medium", Path: []string{"tracking", "utm_medium"}},
	{Column: "tracking_utm_content", Path: []string{"tracking", "utm_content"}},
	{Column: "tracking_utm_term", Path: []string{"tracking", "utm_term"}},
	{Column: "tracking_salesforce_uuid", Path: []string{"tracking", "salesforce_uuid"}},
	{Column: "updated_at", Path: []string{"updated_at"}},
	{Column: "uri", Path: []string{"uri"}},
}

// TimestampColumns are reinterpreted from strings into TIMESTAMP values.
// A string that doesn't match EventTimestampLayout becomes NULL.
var TimestampColumns = []string{
	"created_at",
	"scheduled_event_created_at",
	"scheduled_event_end_time",
	"scheduled_event_start_time",
	"scheduled_event_updated_at",
	"updated_at",
}

// Columns returns the schema column names in declaration order.
func Columns() []string {
	cols := make([]string, len(Schema))
	for i, fm := range Schema {
		cols[i] = fm.Column
	}
	return cols
}

package events

import "sort"

// Flatten converts a nested JSON object into a single level of fields,
// joining ancestor keys with underscores. Nested objects are recursed into;
// lists are kept as-is under the joined key; scalars pass through unchanged.
// An already-flat object comes back equal to its input.
func Flatten(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	flattenInto(out, "", m)
	return out
}

func flattenInto(out map[string]interface{}, prefix string, m map[string]interface{}) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}

// FlattenPayload maps a webhook payload onto the fixed schema in one pass
// over the field-mapping table. Every schema column is present in the result;
// a source field the payload doesn't carry maps to nil, never to a missing
// key. Payload fields outside the schema are dropped (see UnmappedColumns).
func FlattenPayload(payload map[string]interface{}) map[string]interface{} {
	rec := make(map[string]interface{}, len(Schema))
	for _, fm := range Schema {
		rec[fm.Column] = lookupPath(payload, fm.Path)
	}
	return rec
}

// lookupPath walks nested maps along path. Any missing or non-object step
// yields nil.
func lookupPath(m map[string]interface{}, path []string) interface{} {
	var cur interface{} = m
	for _, step := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[step]
	}
	return cur
}

// UnmappedColumns reports the generically-flattened payload keys that the
// schema does not retain, sorted for stable logging. Useful to spot new
// webhook fields the table silently drops.
func UnmappedColumns(payload map[string]interface{}) []string {
	known := make(map[string]bool, len(Schema))
	for _, fm := range Schema {
		known[fm.Column] = true
	}

	var extra []string
	for k := range Flatten(payload) {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return extra
}

package models

import (
	"encoding/json"
	"fmt"
)

// serverActivityKeys are owned by the server. Update bodies cannot set them
// and the stored values always survive a replace.
var serverActivityKeys = []string{
	"id", "tenant_id", "type", "created_by", "created_at", "updated_at",
	"completed_at", "is_completed",
}

// serverCustomKeys are variant fields assigned by the server (ticket numbering,
// SLA tracking, escalation) rather than edited by the user.
var serverCustomKeys = []string{
	"ticket_number", "sla_due_at", "sla_breached", "escalation_reason", "escalated_at",
}

// ReplaceActivity builds the updated form of a from a full update body. Every
// editable field, common or custom, takes the body's value; a key left out of
// the body is cleared. Server-owned keys keep their stored value and the type
// cannot change. a itself is not modified.
func ReplaceActivity(a *Activity, body []byte) (*Activity, error) {
	var next map[string]json.RawMessage
	if err := json.Unmarshal(body, &next); err != nil || next == nil {
		return nil, NewValidationError("", "request body must be a JSON object")
	}

	if rawType, ok := next["type"]; ok {
		var t ActivityType
		if err := json.Unmarshal(rawType, &t); err != nil || t != a.Type {
			return nil, NewValidationError("type", "activity type cannot be changed")
		}
	}

	encoded, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode activity: %w", err)
	}
	var stored map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode activity: %w", err)
	}

	for _, k := range serverActivityKeys {
		delete(next, k)
		if v, ok := stored[k]; ok {
			next[k] = v
		}
	}

	custom, err := keepServerFields(next["custom_fields"], stored["custom_fields"])
	if err != nil {
		return nil, NewValidationError("custom_fields", "custom_fields must be an object")
	}
	if custom == nil {
		delete(next, "custom_fields")
	} else {
		next["custom_fields"] = custom
	}

	data, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("failed to encode updated activity: %w", err)
	}
	out, err := DecodeActivity(data)
	if err != nil {
		if IsValidationError(err) {
			return nil, err
		}
		return nil, NewValidationError("", err.Error())
	}
	out.TenantID = a.TenantID
	return out, nil
}

// keepServerFields returns the body's custom fields with the stored
// server-owned keys written over them. nil means no custom fields at all.
func keepServerFields(body, stored json.RawMessage) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(body) > 0 && string(body) != "null" {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
	}
	for _, k := range serverCustomKeys {
		delete(fields, k)
	}

	if len(stored) > 0 && string(stored) != "null" {
		var old map[string]json.RawMessage
		if err := json.Unmarshal(stored, &old); err != nil {
			return nil, err
		}
		for _, k := range serverCustomKeys {
			if v, ok := old[k]; ok {
				fields[k] = v
			}
		}
	}

	if len(fields) == 0 {
		return nil, nil
	}
	return json.Marshal(fields)
}

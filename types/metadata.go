package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata keys carried by activity messages.
const (
	MetaCharacterName = "character_name"
	MetaUserName      = "user_name"
	MetaStartDate     = "conversation_start_date"
	MetaContext       = "context"
	MetaButtonID      = "button_identifier"
	MetaButtonText    = "button_text"
	MetaOrganisation  = "organisation_name"
)

// StartDateLayout is the layout of MetaStartDate values.
const StartDateLayout = time.RFC3339

// Metadata is the structured payload of an activity message.
type Metadata map[string]string

// Clone returns an independent copy. A nil receiver yields an empty map.
func (md Metadata) Clone() Metadata {
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// SetDefault stores value under key unless a non-empty value is present.
func (md Metadata) SetDefault(key, value string) {
	if value == "" {
		return
	}
	if existing, ok := md[key]; ok && existing != "" {
		return
	}
	md[key] = value
}

// Encode returns the canonical serialization: a JSON object with sorted keys.
func (md Metadata) Encode() string {
	if md == nil {
		md = Metadata{}
	}
	// encoding/json sorts map keys, which makes the output canonical.
	data, err := json.Marshal(map[string]string(md))
	if err != nil {
		return "{}"
	}
	return string(data)
}

// StartDateDayLayout is the date-only form accepted for MetaStartDate.
const StartDateDayLayout = "2006-01-02"

// StartDate parses the conversation start date if present. A date-only value
// is a calendar date and is placed at midnight in loc (UTC when nil).
func (md Metadata) StartDate(loc *time.Location) (time.Time, bool) {
	raw, ok := md[MetaStartDate]
	if !ok || raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(StartDateLayout, raw); err == nil {
		return t, true
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(StartDateDayLayout, raw, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// DecodeMetadata parses a canonical serialization back into Metadata.
func DecodeMetadata(text string) (Metadata, error) {
	md := Metadata{}
	if text == "" {
		return md, nil
	}
	if err := json.Unmarshal([]byte(text), &md); err != nil {
		return nil, fmt.Errorf("decode activity metadata: %w", err)
	}
	return md, nil
}

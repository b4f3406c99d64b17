package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// StoryStatsFormat names the on-disk encoding of the story_stats column.
// v1 is a JSON array of strings; order and duplicates are preserved.
const StoryStatsFormat = "json-array/v1"

// StoryStatsLabels are the labels the frontend offers as checkboxes.
var StoryStatsLabels = []string{"Development", "Unit Testing", "Dev Testing", "Deployment"}

// StoryStats is the ordered list of story progress labels attached to a task.
type StoryStats []string

// EncodeStoryStats renders labels in the v1 column format. A nil list is
// encoded the same as an empty one. Labels must be valid UTF-8.
func EncodeStoryStats(labels []string) (string, error) {
	if labels == nil {
		labels = []string{}
	}
	for i, label := range labels {
		if !utf8.ValidString(label) {
			return "", fmt.Errorf("encode story stats: label %d is not valid UTF-8", i)
		}
	}
	b, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("encode story stats: %w", err)
	}
	return string(b), nil
}

// DecodeStoryStats parses a v1 column value. An empty column decodes to an
// empty list.
func DecodeStoryStats(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return []string{}, nil
	}
	labels := []string{}
	if err := json.Unmarshal([]byte(raw), &labels); err != nil {
		return nil, fmt.Errorf("decode story stats (%s): %w", StoryStatsFormat, err)
	}
	return labels, nil
}

// MarshalJSON writes an empty list as [] rather than null.
func (s StoryStats) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// Value implements the driver.Valuer interface
func (s StoryStats) Value() (driver.Value, error) {
	return EncodeStoryStats(s)
}

// Scan implements the sql.Scanner interface
func (s *StoryStats) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into StoryStats", value)
	}
	labels, err := DecodeStoryStats(raw)
	if err != nil {
		return err
	}
	*s = labels
	return nil
}

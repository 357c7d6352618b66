package store

import "encoding/json"

// encodeTags/decodeTags serialize an event's tag list for storage in a
// single text column, since GORM/SQLite has no native array type.
func encodeTags(tags [][]string) string {
	if len(tags) == 0 {
		return ""
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeTags(raw string) [][]string {
	if raw == "" {
		return nil
	}
	var tags [][]string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

package roster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayouts 依次尝试；没有时区偏移的写法按 UTC 处理。
// 服务器侧的 DateTime 序列化时常常不带偏移，例如 2024-05-01T10:00:00.1234567。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp 是只用于解码的宽松 JSON 时间。
type Timestamp struct {
	time.Time
}

// ParseTimestamp 按 timestampLayouts 解析，空串得到零值。
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// UnmarshalJSON 接受带或不带时区偏移的时间。
func (d *DatedString) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value     string    `json:"value"`
		FirstSeen Timestamp `json:"firstSeen"`
		LastSeen  Timestamp `json:"lastSeen"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = DatedString{Value: raw.Value, FirstSeen: raw.FirstSeen.Time, LastSeen: raw.LastSeen.Time}
	return nil
}

// UnmarshalJSON 同 DatedString，只替换两个时间字段的解析。
func (e *VisitorEntry) UnmarshalJSON(data []byte) error {
	type plain VisitorEntry
	var raw struct {
		plain
		FirstSeen Timestamp `json:"firstSeen"`
		LastSeen  Timestamp `json:"lastSeen"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = VisitorEntry(raw.plain)
	e.FirstSeen = raw.FirstSeen.Time
	e.LastSeen = raw.LastSeen.Time
	return nil
}

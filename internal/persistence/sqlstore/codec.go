package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = time.DateOnly

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func toDate(value time.Time) string {
	y, m, d := value.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(dateLayout)
}

func nullDate(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: toDate(*value), Valid: true}
}

func fromDate(value string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode date %q: %w", value, err)
	}
	return parsed, nil
}

func fromNullDate(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	parsed, err := fromDate(value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func fromNullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func encodeDays(days []string) (string, error) {
	if len(days) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return "", fmt.Errorf("encode repeat days: %w", err)
	}
	return string(raw), nil
}

func decodeDays(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var days []string
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil, fmt.Errorf("decode repeat days: %w", err)
	}
	return days, nil
}

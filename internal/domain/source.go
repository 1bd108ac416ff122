package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// RawJSON keeps a source payload verbatim.
type RawJSON json.RawMessage

// Value implements the driver.Valuer interface.
func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	return string(r), nil
}

// Scan implements the sql.Scanner interface.
func (r *RawJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*r = nil
	case []byte:
		*r = append(RawJSON(nil), v...)
	case string:
		*r = RawJSON(v)
	default:
		return errors.New("failed to scan RawJSON")
	}
	return nil
}

// MarshalJSON emits the payload as embedded JSON.
func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON stores a copy of data.
func (r *RawJSON) UnmarshalJSON(data []byte) error {
	*r = append((*r)[0:0], data...)
	return nil
}

// MappingKind is the canonical table a SourceMapping points into.
type MappingKind string

const (
	MappingKindRegion   MappingKind = "region"
	MappingKindDistrict MappingKind = "district"
	MappingKindCategory MappingKind = "category"
)

// SourceMapping maps a source's own numeric id to a canonical id.
type SourceMapping struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Source      string      `gorm:"type:text;not null;uniqueIndex:idx_source_mappings_key" json:"source"`
	Kind        MappingKind `gorm:"type:text;not null;uniqueIndex:idx_source_mappings_key" json:"kind"`
	ExternalID  string      `gorm:"type:text;not null;uniqueIndex:idx_source_mappings_key" json:"external_id"`
	CanonicalID int64       `gorm:"not null" json:"canonical_id"`
}

// TableName returns the database table name for SourceMapping.
func (SourceMapping) TableName() string {
	return "source_mappings"
}

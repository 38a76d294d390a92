package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SystemSetting is a runtime switch or value operators change without a
// redeploy. Feature switches live under the "feature." prefix.
type SystemSetting struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Key string `gorm:"type:varchar(120);not null;uniqueIndex" json:"key"`

	// JSON value: true/false for switches.
	Value datatypes.JSON `gorm:"type:jsonb;not null" json:"value" swaggertype:"object"`

	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;autoUpdateTime;index" json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

// Bool decodes Value as a boolean. ok is false for empty or non-boolean
// values.
func (s SystemSetting) Bool() (value bool, ok bool) {
	if len(s.Value) == 0 {
		return false, false
	}
	if err := json.Unmarshal(s.Value, &value); err != nil {
		return false, false
	}
	return value, true
}

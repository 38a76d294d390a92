package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"tradesignal/internal/models"
	"tradesignal/internal/repository"
)

const (
	// FeaturePipeline gates scheduled runs. Manual triggers ignore it.
	FeaturePipeline = "feature.pipeline"
	// FeatureNotify gates post-run notifications.
	FeatureNotify = "feature.notify"
)

const switchPrefix = "feature."

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeaturePipeline: true,
		FeatureNotify:   true,
	}
}

// SwitchKey maps a switch name ("pipeline") to its settings key.
func SwitchKey(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, switchPrefix) {
		return name
	}
	return switchPrefix + name
}

type SystemSettingsService struct {
	Repo repository.SettingsRepository
}

// EnsureDefaultSwitches writes missing switches and leaves existing values,
// including ones an operator turned off, untouched.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// IsEnabled reads a boolean switch. Missing, unreadable or non-boolean values
// yield fallback.
func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil {
		return fallback
	}
	enabled, ok := item.Bool()
	if !ok {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedAt:   time.Now().UTC(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}

// Gate adapts a switch to the func(ctx) bool shape the pipeline and
// notifier take.
func (s *SystemSettingsService) Gate(key string, fallback bool) func(context.Context) bool {
	return func(ctx context.Context) bool {
		return s.IsEnabled(ctx, key, fallback)
	}
}

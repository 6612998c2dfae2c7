package service

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fraywing/threadcast/internal/models"
	"github.com/fraywing/threadcast/pkg/textutil"
)

// LoadContentItems reads the detector's item feed. The feed is a JSON array
// written by the upstream content detector after each site build.
func LoadContentItems(path string) ([]models.ContentItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read items file: %w", err)
	}

	var items []models.ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse items file %s: %w", path, err)
	}
	for i := range items {
		if items[i].Slug == "" {
			items[i].Slug = textutil.Slug(items[i].Title)
		}
	}
	return items, nil
}

// LoadStyleProfile reads the style analyzer's output. A missing or empty path
// yields the neutral default profile rather than an error; generation quality
// degrades but the pipeline keeps running.
func LoadStyleProfile(path string) (*models.StyleProfile, error) {
	if path == "" {
		return models.DefaultStyleProfile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.DefaultStyleProfile(), nil
		}
		return nil, fmt.Errorf("failed to read style profile: %w", err)
	}

	var profile models.StyleProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse style profile %s: %w", path, err)
	}
	if profile.StructuralPrefs == nil {
		profile.StructuralPrefs = map[string]string{}
	}
	return &profile, nil
}

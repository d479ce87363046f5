package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"smartcrm/internal/models"
	"smartcrm/internal/repositories"
)

const statusPercentagesSchema = `{
	"type": "object",
	"additionalProperties": {
		"oneOf": [
			{"type": "number", "minimum": 0, "maximum": 100},
			{"type": "string", "pattern": "^\\s*(100|[1-9]?[0-9])\\s*$"}
		]
	}
}`

const preferencesSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"leadIdPrefix":       {"type": "string", "maxLength": 20},
		"leadIdStart":        {"type": "integer", "minimum": 0},
		"followUpDays":       {"type": "integer", "minimum": 0, "maximum": 365},
		"agingAlertDays":     {"type": "integer", "minimum": 0, "maximum": 3650},
		"emailNotifications": {"type": "boolean"},
		"dailyDigest":        {"type": "boolean"},
		"defaultPageSize":    {"type": "integer", "minimum": 1, "maximum": 500},
		"autoLeadPercentage": {"type": "boolean"}
	}
}`

// DefaultStatusPercentages is seeded when no mapping is stored yet.
var DefaultStatusPercentages = map[string]int{
	"New":         10,
	"Contacted":   20,
	"Qualified":   40,
	"Proposal":    60,
	"Negotiation": 80,
	"Won":         100,
	"Lost":        0,
}

func compileSchema(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://smartcrm.local/schemas/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("settings schema %s: %v", name, err))
	}
	return c.MustCompile(url)
}

// LeadIDSource is the slice of the lead repository id generation needs.
type LeadIDSource interface {
	MaxLeadSeq(ctx context.Context, prefix string) (int64, bool, error)
}

type SettingsService struct {
	repo    repositories.SettingsRepository
	schemas map[string]*jsonschema.Schema
}

func NewSettingsService(repo repositories.SettingsRepository) *SettingsService {
	return &SettingsService{
		repo: repo,
		schemas: map[string]*jsonschema.Schema{
			models.SettingStatusPercentages: compileSchema(models.SettingStatusPercentages, statusPercentagesSchema),
			models.SettingPreferences:       compileSchema(models.SettingPreferences, preferencesSchema),
		},
	}
}

// GetAll returns every stored setting keyed by type.
func (s *SettingsService) GetAll(ctx context.Context) (map[string]any, error) {
	raw, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		var data any
		if err := json.Unmarshal(v, &data); err != nil {
			log.Warn().Err(err).Str("type", k).Msg("[settings][get] bad json, skipped")
			continue
		}
		out[k] = data
	}
	return out, nil
}

// Save validates known setting types and upserts the row.
func (s *SettingsService) Save(ctx context.Context, settingType string, data any, updatedBy int) error {
	settingType = strings.TrimSpace(settingType)
	if settingType == "" {
		return invalid("Setting type is required")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return invalid("Setting data is not valid JSON")
	}
	if sch, ok := s.schemas[settingType]; ok {
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			return invalid("Setting data is not valid JSON")
		}
		if err := sch.Validate(doc); err != nil {
			return invalid("Invalid %s: %v", settingType, err)
		}
	}
	by := updatedBy
	if err := s.repo.Upsert(ctx, settingType, b, &by); err != nil {
		return fmt.Errorf("save setting %s: %w", settingType, err)
	}
	log.Info().Str("type", settingType).Int("by", updatedBy).Msg("[settings][save] done")
	return nil
}

// Preferences merges the stored preferences over the defaults.
func (s *SettingsService) Preferences(ctx context.Context) models.Preferences {
	prefs := models.DefaultPreferences()
	raw, err := s.repo.Get(ctx, models.SettingPreferences)
	if err != nil {
		log.Warn().Err(err).Msg("[settings][preferences] read failed, using defaults")
		return prefs
	}
	if len(raw) == 0 {
		return prefs
	}
	merged := prefs
	if err := json.Unmarshal(raw, &merged); err != nil {
		log.Warn().Err(err).Msg("[settings][preferences] bad json, using defaults")
		return prefs
	}
	if strings.TrimSpace(merged.LeadIDPrefix) == "" {
		merged.LeadIDPrefix = prefs.LeadIDPrefix
	}
	merged.LeadIDPrefix = strings.TrimSpace(merged.LeadIDPrefix)
	return merged
}

// StatusPercentages reads the mapping fresh from the store. Entries that are
// not whole numbers are dropped.
func (s *SettingsService) StatusPercentages(ctx context.Context) (map[string]int, error) {
	raw, err := s.repo.Get(ctx, models.SettingStatusPercentages)
	if err != nil {
		return nil, err
	}
	out := map[string]int{}
	if len(raw) == 0 {
		return out, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return out, nil
	}
	for status, v := range m {
		if p, ok := percentValue(v); ok {
			out[status] = p
		}
	}
	return out, nil
}

func percentValue(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(math.Trunc(x)), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// StatusPercentage maps status to its configured percentage; unknown is 0.
func (s *SettingsService) StatusPercentage(ctx context.Context, status string) int {
	m, err := s.StatusPercentages(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("[settings][percentage] read failed")
		return 0
	}
	return m[status]
}

// NextLeadID returns prefix + 10-digit sequence. Call it inside the
// transaction that holds the lead id lock.
func (s *SettingsService) NextLeadID(ctx context.Context, leads LeadIDSource) (string, error) {
	prefs := s.Preferences(ctx)
	prefix := prefs.LeadIDPrefix
	next := prefs.LeadIDStart

	last, found, err := leads.MaxLeadSeq(ctx, prefix)
	if err != nil {
		return "", err
	}
	if found {
		next = last + 1
	}
	return fmt.Sprintf("%s%010d", prefix, next), nil
}

// SeedDefaults stores the default mapping and preferences when missing.
func (s *SettingsService) SeedDefaults(ctx context.Context) error {
	pct, _ := json.Marshal(DefaultStatusPercentages)
	if err := s.repo.InsertIfMissing(ctx, models.SettingStatusPercentages, pct); err != nil {
		return err
	}
	prefs, _ := json.Marshal(models.DefaultPreferences())
	return s.repo.InsertIfMissing(ctx, models.SettingPreferences, prefs)
}

package services

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"smartcrm/internal/models"
)

// readOnlyLeadKeys may appear in a round-tripped lead body and are ignored.
var readOnlyLeadKeys = map[string]bool{
	"id": true, "lead_id": true, "lead_aging": true, "created_by": true,
	"created_at": true, "updated_at": true, "created_by_name": true, "assigned_to_name": true,
	"activities": true, "status_history": true, "field_history": true,
}

// normalizeLeadInput converts a decoded JSON body into typed lead values.
// Empty strings become nil; unknown keys are rejected.
func normalizeLeadInput(in map[string]any) (models.LeadValues, error) {
	out := make(models.LeadValues, len(in))
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if readOnlyLeadKeys[k] {
			continue
		}
		f, ok := models.LookupLeadField(k)
		if !ok {
			return nil, invalid("Unknown field: %s", k)
		}
		v, err := coerceLeadValue(f, in[k])
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func coerceLeadValue(f models.LeadField, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		raw = s
	}

	switch f.Kind {
	case models.KindText:
		switch x := raw.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		}
	case models.KindDate:
		if s, ok := raw.(string); ok {
			if len(s) > 10 {
				s = s[:10]
			}
			if _, err := time.Parse("2006-01-02", s); err != nil {
				return nil, invalid("Invalid date for %s, expected YYYY-MM-DD", f.Key)
			}
			return s, nil
		}
	case models.KindNumber:
		switch x := raw.(type) {
		case float64:
			return x, nil
		case string:
			n, err := strconv.ParseFloat(strings.ReplaceAll(x, ",", ""), 64)
			if err != nil {
				return nil, invalid("Invalid number for %s", f.Key)
			}
			return n, nil
		}
	case models.KindInt:
		var n int
		switch x := raw.(type) {
		case float64:
			if x != math.Trunc(x) {
				return nil, invalid("Invalid integer for %s", f.Key)
			}
			n = int(x)
		case string:
			v, err := strconv.Atoi(x)
			if err != nil {
				return nil, invalid("Invalid integer for %s", f.Key)
			}
			n = v
		default:
			return nil, invalid("Invalid integer for %s", f.Key)
		}
		if f.Key == "lead_percentage" && (n < 0 || n > 100) {
			return nil, invalid("lead_percentage must be between 0 and 100")
		}
		return n, nil
	}
	return nil, invalid("Invalid value for %s", f.Key)
}

// leadValueText renders a normalized value the way history rows store it.
func leadValueText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

// sameLeadValue compares a stored snapshot text with a new normalized value.
func sameLeadValue(f models.LeadField, old string, v any) bool {
	if v == nil {
		return old == ""
	}
	if old == "" {
		return false
	}
	switch f.Kind {
	case models.KindNumber:
		o, err := strconv.ParseFloat(old, 64)
		return err == nil && o == v.(float64)
	case models.KindInt:
		o, err := strconv.Atoi(old)
		return err == nil && o == v.(int)
	}
	return old == leadValueText(v)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// leadAging returns whole days between leadDate and today, never negative.
func leadAging(leadDate string, now time.Time) int {
	d, err := time.Parse("2006-01-02", leadDate)
	if err != nil {
		return 0
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(today.Sub(d).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

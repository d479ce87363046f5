package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"smartcrm/internal/models"
	"smartcrm/internal/repositories"
)

const (
	AuditMaxLimit     = 500
	auditDefaultLimit = 50
	securityRecent    = 200
)

// securityActions are shown as "Security" events; everything else is "Audit".
var securityActions = map[string]bool{
	"login":           true,
	"logout":          true,
	"password change": true,
	"failed login":    true,
}

type AuditService struct {
	repo *repositories.AuditRepository
}

func NewAuditService(repo *repositories.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// Record stores e. It never fails the caller; errors are logged.
func (s *AuditService) Record(ctx context.Context, e models.AuditLog) {
	if s == nil || s.repo == nil {
		return
	}
	e.Username = dash(e.Username)
	e.Action = dash(e.Action)
	e.ResourceType = dash(e.ResourceType)
	e.ResourceID = dash(e.ResourceID)
	e.Method = dash(e.Method)
	e.Path = dash(e.Path)
	e.IPAddress = dash(e.IPAddress)
	e.UserAgent = dash(e.UserAgent)
	e.SessionToken = dash(e.SessionToken)
	e.Description = dash(e.Description)
	if len(e.Details) > 0 && !json.Valid(e.Details) {
		b, _ := json.Marshal(map[string]string{"raw": string(e.Details)})
		e.Details = b
	}

	if err := s.repo.Insert(ctx, &e); err != nil {
		log.Error().Err(err).Str("action", e.Action).Str("user", e.Username).Msg("[audit][record] failed")
	}
}

func (s *AuditService) List(ctx context.Context, f models.AuditFilter) ([]models.AuditLog, models.Pagination, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = auditDefaultLimit
	}
	if f.Limit > AuditMaxLimit {
		f.Limit = AuditMaxLimit
	}
	logs, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return logs, models.NewPagination(f.Page, f.Limit, total), nil
}

// SecurityEvents returns the latest records shaped for the security table.
func (s *AuditService) SecurityEvents(ctx context.Context) ([]models.SecurityEvent, error) {
	logs, err := s.repo.Recent(ctx, securityRecent)
	if err != nil {
		return nil, err
	}
	out := make([]models.SecurityEvent, 0, len(logs))
	for _, l := range logs {
		out = append(out, toSecurityEvent(l))
	}
	return out, nil
}

func toSecurityEvent(l models.AuditLog) models.SecurityEvent {
	ev := models.SecurityEvent{
		Timestamp: l.CreatedAt,
		User:      l.Username,
		Event:     "Audit",
		Action:    l.Action,
		IP:        l.IPAddress,
		Details:   l.Details,
		Success:   l.Success,
	}
	if securityActions[strings.ToLower(l.Action)] {
		ev.Event = "Security"
	}
	if len(l.Details) > 0 {
		var d map[string]any
		if json.Unmarshal(l.Details, &d) == nil {
			if ip, ok := d["publicIP"].(string); ok && ip != "" {
				ev.IP = ip
			}
		}
	}
	return ev
}

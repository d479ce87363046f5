package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"smartcrm/internal/authz"
	"smartcrm/internal/models"
	"smartcrm/internal/repositories"
	"smartcrm/internal/storage"
)

const MaxReportSize = 20 << 20

var pdfMagic = []byte("%PDF")

// ReportUpload is one multipart upload already read into memory.
type ReportUpload struct {
	Name        string
	Description string
	Filename    string
	ContentType string
	Data        []byte
}

type ReportService struct {
	reports *repositories.ReportRepository
	leads   *repositories.LeadRepository
	files   storage.Backend
	now     func() time.Time
}

func NewReportService(reports *repositories.ReportRepository, leads *repositories.LeadRepository, files storage.Backend) *ReportService {
	return &ReportService{reports: reports, leads: leads, files: files, now: time.Now}
}

// IsPDF accepts the upload when the extension is .pdf and either the declared
// content type is application/pdf or it is generic and the body starts with %PDF.
func IsPDF(filename, contentType string, data []byte) bool {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "application/pdf":
		return true
	case "", "application/octet-stream":
		return bytes.HasPrefix(data, pdfMagic)
	}
	return false
}

func (s *ReportService) lead(ctx context.Context, sub *authz.Subject, leadID int) (*models.Lead, error) {
	l, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, notFound("Lead")
	}
	if !canAccessLead(sub, l) {
		return nil, newError(ErrForbidden, "No permission to access this lead")
	}
	return l, nil
}

func (s *ReportService) Upload(ctx context.Context, sub *authz.Subject, leadID int, up ReportUpload) (*models.LeadReport, error) {
	if _, err := s.lead(ctx, sub, leadID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(up.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(up.Filename), filepath.Ext(up.Filename))
	}
	if name == "" {
		return nil, invalid("Report name is required")
	}
	if len(up.Data) == 0 {
		return nil, invalid("File is empty")
	}
	if len(up.Data) > MaxReportSize {
		return nil, invalid("File is too large")
	}
	if !IsPDF(up.Filename, up.ContentType, up.Data) {
		return nil, invalid("Only PDF files are allowed")
	}

	id := uuid.NewString()
	key := fmt.Sprintf("reports/%d/%s.pdf", leadID, id)
	if err := s.files.Put(ctx, key, "application/pdf", up.Data); err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}

	by := sub.FullName
	if by == "" {
		by = sub.Username
	}
	rep := &models.LeadReport{
		ID:          id,
		LeadID:      leadID,
		Name:        name,
		Description: strPtr(strings.TrimSpace(up.Description)),
		Filename:    key,
		UploadedBy:  by,
	}
	if err := s.reports.Create(ctx, rep); err != nil {
		if derr := s.files.Delete(ctx, key); derr != nil {
			log.Warn().Err(derr).Str("key", key).Msg("[reports][upload] orphan object")
		}
		return nil, err
	}
	log.Info().Int("lead", leadID).Str("report", id).Int("bytes", len(up.Data)).Msg("[reports][upload] stored")
	return rep, nil
}

func (s *ReportService) List(ctx context.Context, sub *authz.Subject, leadID int) ([]models.LeadReport, error) {
	if _, err := s.lead(ctx, sub, leadID); err != nil {
		return nil, err
	}
	return s.reports.ListByLead(ctx, leadID)
}

func (s *ReportService) get(ctx context.Context, sub *authz.Subject, leadID int, id string) (*models.LeadReport, error) {
	if _, err := s.lead(ctx, sub, leadID); err != nil {
		return nil, err
	}
	rep, err := s.reports.Get(ctx, leadID, id)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, notFound("Report")
	}
	return rep, nil
}

// Download returns the report body and the suggested file name.
func (s *ReportService) Download(ctx context.Context, sub *authz.Subject, leadID int, id string) ([]byte, string, error) {
	rep, err := s.get(ctx, sub, leadID, id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.files.Get(ctx, rep.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", notFound("Report file")
		}
		return nil, "", err
	}
	name := rep.Name
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return data, name, nil
}

func (s *ReportService) Delete(ctx context.Context, sub *authz.Subject, leadID int, id string) error {
	rep, err := s.get(ctx, sub, leadID, id)
	if err != nil {
		return err
	}
	if err := s.files.Delete(ctx, rep.Filename); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("remove report object: %w", err)
	}
	return s.reports.Delete(ctx, rep.ID)
}

package admin

import (
	"context"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"imageref/internal/audit"
	"imageref/internal/registration/models"
	"imageref/internal/storage"
	dErrors "imageref/pkg/domain-errors"
)

// LedgerReader reads the full registration ledger.
type LedgerReader interface {
	LoadAll(ctx context.Context) ([]models.Record, error)
}

// Gallery lists stored files.
type Gallery interface {
	List(ctx context.Context) ([]storage.File, error)
}

// AuditReader queries recorded events.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
	ListByEmail(ctx context.Context, email string) ([]audit.Event, error)
}

// Service provides read-only views over the ledger, stored files and audit trail.
type Service struct {
	ledger  LedgerReader
	gallery Gallery
	audit   AuditReader
	now     func() time.Time
}

// NewService creates a new admin service. auditReader may be nil.
func NewService(ledger LedgerReader, gallery Gallery, auditReader AuditReader) *Service {
	return &Service{
		ledger:  ledger,
		gallery: gallery,
		audit:   auditReader,
		now:     time.Now,
	}
}

// SortField names a sortable registrations column.
type SortField string

const (
	SortNone           SortField = ""
	SortChildName      SortField = "childName"
	SortParentName     SortField = "parentName"
	SortAge            SortField = "age"
	SortEmail          SortField = "email"
	SortStatus         SortField = "status"
	SortRegistrationID SortField = "registrationId"
	SortDateOfBirth    SortField = "dateOfBirth"
	SortGrade          SortField = "grade"
)

func (f SortField) IsValid() bool {
	switch f {
	case SortNone, SortChildName, SortParentName, SortAge, SortEmail,
		SortStatus, SortRegistrationID, SortDateOfBirth, SortGrade:
		return true
	}
	return false
}

// Stats summarizes submission progress.
type Stats struct {
	Registrations int            `json:"registrations"`
	Done          int            `json:"done"`
	Pending       int            `json:"pending"`
	Families      int            `json:"families"`
	StoredFiles   map[string]int `json:"storedFiles"`
	Timestamp     time.Time      `json:"timestamp"`
}

// GetStats counts registrations by status and stored files by category.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	records, err := s.ledger.LoadAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeLedgerUnreadable, "registration ledger is unavailable")
	}
	files, err := s.gallery.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored files could not be listed")
	}

	stats := &Stats{
		Registrations: len(records),
		StoredFiles:   make(map[string]int, len(models.Categories())),
		Timestamp:     s.now().UTC(),
	}
	families := map[string]struct{}{}
	for _, r := range records {
		if r.Status.IsDone() {
			stats.Done++
		} else {
			stats.Pending++
		}
		families[models.NormalizeKey(r.Email)] = struct{}{}
	}
	stats.Families = len(families)
	for _, c := range models.Categories() {
		stats.StoredFiles[string(c)] = 0
	}
	for _, f := range files {
		stats.StoredFiles[string(f.Category)]++
	}
	return stats, nil
}

// Registrations returns ledger records sorted by field. SortNone keeps
// ledger order; ties keep ledger order too.
func (s *Service) Registrations(ctx context.Context, field SortField, descending bool) ([]models.Record, error) {
	if !field.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported sort field")
	}
	records, err := s.ledger.LoadAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeLedgerUnreadable, "registration ledger is unavailable")
	}
	if field == SortNone {
		if descending {
			slices.Reverse(records)
		}
		return records, nil
	}

	// collators are not safe for concurrent use
	col := collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
	slices.SortStableFunc(records, func(a, b models.Record) int {
		c := compareBy(col, field, a, b)
		if descending {
			return -c
		}
		return c
	})
	return records, nil
}

func compareBy(col *collate.Collator, field SortField, a, b models.Record) int {
	switch field {
	case SortAge:
		return a.Age - b.Age
	case SortStatus:
		return col.CompareString(string(a.Status.Normalized()), string(b.Status.Normalized()))
	default:
		return col.CompareString(strings.TrimSpace(sortKey(field, a)), strings.TrimSpace(sortKey(field, b)))
	}
}

func sortKey(field SortField, r models.Record) string {
	switch field {
	case SortChildName:
		return r.ChildName
	case SortParentName:
		return r.ParentName
	case SortEmail:
		return r.Email
	case SortRegistrationID:
		return r.RegistrationID
	case SortDateOfBirth:
		return r.DateOfBirth
	case SortGrade:
		return r.Grade
	default:
		return ""
	}
}

// GalleryGroup is one category's stored files, newest first.
type GalleryGroup struct {
	Category models.Category `json:"category"`
	Files    []storage.File  `json:"files"`
}

// Gallery groups stored files by category in ascending age order. Every
// category appears, even when empty.
func (s *Service) Gallery(ctx context.Context) ([]GalleryGroup, error) {
	files, err := s.gallery.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored files could not be listed")
	}
	groups := make([]GalleryGroup, 0, len(models.Categories()))
	index := map[models.Category]int{}
	for i, c := range models.Categories() {
		groups = append(groups, GalleryGroup{Category: c, Files: []storage.File{}})
		index[c] = i
	}
	for _, f := range files {
		if i, ok := index[f.Category]; ok {
			groups[i].Files = append(groups[i].Files, f)
		}
	}
	return groups, nil
}

// GetRecentAuditEvents returns recent events, or those for one email when
// email is set.
func (s *Service) GetRecentAuditEvents(ctx context.Context, email string, limit int) ([]audit.Event, error) {
	if s.audit == nil {
		return []audit.Event{}, nil
	}
	if email != "" {
		return s.audit.ListByEmail(ctx, email)
	}
	return s.audit.Recent(ctx, limit)
}

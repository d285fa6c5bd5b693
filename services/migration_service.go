package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"peer-review-api/models"
	"peer-review-api/storage"
)

// MigrationLock names the lock held while legacy papers are migrated.
const MigrationLock = "migrate_review_slots"

type MigrationSummary struct {
	PapersScanned      int `json:"papers_scanned"`
	PapersUpdated      int `json:"papers_updated"`
	SlotsInitialized   int `json:"slots_initialized"`
	SlotsOccupied      int `json:"slots_occupied"`
	SlotsOverflow      int `json:"slots_overflow"`
	AssignmentsCreated int `json:"assignments_created"`
	Failed             int `json:"failed"`
}

type MigrationInput struct {
	PageSize int
	DryRun   bool
}

// MigrationService brings papers written before slots and assignments
// existed up to the current model. Every step is safe to re-run.
type MigrationService struct {
	store    storage.Store
	workflow *ReviewWorkflowService
	days     int
	now      func() time.Time
	log      *logrus.Entry
}

func NewMigrationService(store storage.Store, workflow *ReviewWorkflowService) *MigrationService {
	return &MigrationService{
		store:    store,
		workflow: workflow,
		days:     workflow.reviewDays,
		now:      time.Now,
		log:      logrus.WithField("component", "migration"),
	}
}

func (s *MigrationService) Run(ctx context.Context, in MigrationInput) (*MigrationSummary, error) {
	if locker, ok := s.store.(storage.Locker); ok && !in.DryRun {
		release, err := locker.AcquireLock(ctx, MigrationLock)
		if err != nil {
			return nil, storeErr(err, "migration lock")
		}
		defer func() {
			if relErr := release(); relErr != nil {
				s.log.WithError(relErr).Warn("failed to release migration lock")
			}
		}()
	}

	pageSize := in.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	summary := &MigrationSummary{}
	for offset := 0; ; offset += pageSize {
		papers, err := s.store.ListPapers(ctx, storage.PaperFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return summary, storeErr(err, "papers")
		}
		for i := range papers {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			summary.PapersScanned++
			if err := s.migratePaper(ctx, &papers[i], in.DryRun, summary); err != nil {
				summary.Failed++
				s.log.WithError(err).WithField("paper_id", papers[i].ID).Error("paper migration failed")
			}
		}
		if len(papers) < pageSize {
			break
		}
	}
	return summary, nil
}

type slotMigration struct {
	initialized bool
	recounted   bool
	occupied    int
	overflow    int
}

func (m slotMigration) changed() bool {
	return m.initialized || m.recounted || m.occupied > 0
}

// migrateSlots derives slot occupancy from the response ledger.
func migrateSlots(p *models.Paper, now time.Time) slotMigration {
	var m slotMigration
	storedAvailable, storedMax := p.AvailableSlots, p.MaxReviewSlots
	if len(p.ReviewSlots) == 0 {
		m.initialized = true
	}
	InitializeSlots(p)

	accepted := map[string]*models.ReviewerResponse{}
	for i := range p.PeerReview.Responses {
		r := &p.PeerReview.Responses[i]
		if r.Round == p.ReviewRound && (r.Status == models.ResponseAccepted || r.Status == models.ResponseCompleted) {
			accepted[r.ReviewerID] = r
		}
	}

	// legacy "pending" slots hold no one until the reviewer accepts
	for i := range p.ReviewSlots {
		slot := &p.ReviewSlots[i]
		if slot.Status != models.SlotPending {
			continue
		}
		if slot.ReviewerID != nil && accepted[*slot.ReviewerID] != nil {
			slot.Status = models.SlotOccupied
		} else {
			*slot = models.ReviewSlot{SlotNumber: slot.SlotNumber, Status: models.SlotAvailable}
		}
		m.initialized = true
	}
	recountAvailable(p)

	for _, r := range p.PeerReview.Responses {
		reviewerID := r.ReviewerID
		if accepted[reviewerID] == nil || r.Round != p.ReviewRound {
			continue
		}
		held := false
		for _, slot := range p.ReviewSlots {
			if slot.HeldBy(reviewerID) && slot.Status == models.SlotOccupied {
				held = true
				break
			}
		}
		if held {
			continue
		}
		at := now
		if r.ResponseDate != nil {
			at = *r.ResponseDate
		}
		if err := OccupySlot(p, reviewerID, at); err != nil {
			m.overflow++
			continue
		}
		m.occupied++
		if !p.PeerReview.IsAssigned(reviewerID) {
			p.PeerReview.AssignedReviewers = append(p.PeerReview.AssignedReviewers, reviewerID)
		}
	}
	m.recounted = p.AvailableSlots != storedAvailable || p.MaxReviewSlots != storedMax
	return m
}

func (s *MigrationService) migratePaper(ctx context.Context, p *models.Paper, dryRun bool, summary *MigrationSummary) error {
	now := s.now()
	var m slotMigration
	if dryRun {
		m = migrateSlots(p, now)
	} else {
		updated, err := s.workflow.mutatePaper(ctx, p.ID, func(fresh *models.Paper) error {
			m = migrateSlots(fresh, now)
			if !m.changed() {
				return errNoChange
			}
			return nil
		})
		if err != nil {
			return err
		}
		p = updated
	}
	if m.initialized {
		summary.SlotsInitialized++
	}
	summary.SlotsOccupied += m.occupied
	summary.SlotsOverflow += m.overflow
	if m.changed() {
		summary.PapersUpdated++
	}

	created, err := s.migrateAssignments(ctx, p, dryRun)
	summary.AssignmentsCreated += created
	return err
}

// migrateAssignments creates the assignment missing for any ledger entry of
// the current round.
func (s *MigrationService) migrateAssignments(ctx context.Context, p *models.Paper, dryRun bool) (int, error) {
	created := 0
	for _, r := range p.PeerReview.Responses {
		if r.Round != p.ReviewRound {
			continue
		}
		_, err := s.store.FindAssignment(ctx, p.ID, r.ReviewerID)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return created, storeErr(err, "assignment")
		}

		a := assignmentFromResponse(p, r, s.days, s.now())
		created++
		if dryRun {
			continue
		}
		if err := s.store.UpsertAssignment(ctx, a); err != nil {
			return created - 1, storeErr(err, "assignment")
		}
	}
	return created, nil
}

func assignmentFromResponse(p *models.Paper, r models.ReviewerResponse, days int, now time.Time) *models.ReviewAssignment {
	a := &models.ReviewAssignment{
		ID:         uuid.NewString(),
		PaperID:    p.ID,
		ReviewerID: r.ReviewerID,
		Round:      r.Round,
		AssignedAt: r.AssignedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	switch r.Status {
	case models.ResponseAccepted, models.ResponseCompleted:
		accepted := r.AssignedAt
		if r.ResponseDate != nil {
			accepted = *r.ResponseDate
		}
		deadline := accepted.Add(time.Duration(days) * day)
		a.Status = models.AssignmentAccepted
		a.AcceptedAt = &accepted
		a.Deadline = &deadline
		if r.Status == models.ResponseCompleted {
			a.Status = models.AssignmentCompleted
			a.CompletedAt = r.CompletedAt
		}
	case models.ResponseDeclined:
		a.Status = models.AssignmentDeclined
	default:
		a.Status = models.AssignmentPending
	}
	return a
}

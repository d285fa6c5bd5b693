package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"peer-review-api/models"
	"peer-review-api/storage"
	"peer-review-api/utils"
)

// maxUpdateAttempts bounds the re-read/re-apply loop on version conflicts.
const maxUpdateAttempts = 5

// errNoChange aborts a paper mutation without writing.
var errNoChange = errors.New("no change")

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsEditor() bool {
	return a.Role == models.RoleEditor || a.Role == models.RoleAdmin
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

type ReviewWorkflowService struct {
	store      storage.Store
	notifier   Notifier
	reviewDays int
	now        func() time.Time
	log        *logrus.Entry
}

func NewReviewWorkflowService(store storage.Store, notifier Notifier, defaultReviewDays int) *ReviewWorkflowService {
	if defaultReviewDays <= 0 {
		defaultReviewDays = models.DefaultReviewDays
	}
	return &ReviewWorkflowService{
		store:      store,
		notifier:   notifier,
		reviewDays: defaultReviewDays,
		now:        time.Now,
		log:        logrus.WithField("component", "review_workflow"),
	}
}

// SetClock replaces the time source.
func (s *ReviewWorkflowService) SetClock(now func() time.Time) {
	s.now = now
}

// mutatePaper applies mutate to a fresh copy of the paper and writes it back
// with a version check, retrying on conflicts. mutate must be safe to re-run.
func (s *ReviewWorkflowService) mutatePaper(ctx context.Context, paperID string, mutate func(p *models.Paper) error) (*models.Paper, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := s.store.FindPaper(ctx, paperID)
		if err != nil {
			return nil, storeErr(err, "paper")
		}
		if err := mutate(p); err != nil {
			if errors.Is(err, errNoChange) {
				return p, nil
			}
			return nil, err
		}

		err = s.store.UpdatePaper(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, storeErr(err, "paper")
		}
		s.log.WithFields(logrus.Fields{"paper_id": paperID, "attempt": attempt}).Debug("paper version conflict, retrying")
	}
	return nil, fmt.Errorf("paper %s: %w", paperID, ErrConflict)
}

func (s *ReviewWorkflowService) loadPaper(ctx context.Context, paperID string) (*models.Paper, error) {
	p, err := s.store.FindPaper(ctx, paperID)
	if err != nil {
		return nil, storeErr(err, "paper")
	}
	return p, nil
}

func (s *ReviewWorkflowService) hubOwner(ctx context.Context, hubID string) string {
	if hubID == "" {
		return ""
	}
	hub, err := s.store.FindHub(ctx, hubID)
	if err != nil {
		s.log.WithError(err).WithField("hub_id", hubID).Warn("hub lookup failed")
		return ""
	}
	return models.ResolveID(hub.Owner)
}

// canManage: editors, admins and the owner of the paper's hub.
func (s *ReviewWorkflowService) canManage(ctx context.Context, actor Actor, p *models.Paper) bool {
	if actor.IsEditor() {
		return true
	}
	owner := s.hubOwner(ctx, models.ResolveID(p.Hub))
	return owner != "" && owner == actor.UserID
}

func (s *ReviewWorkflowService) canView(ctx context.Context, actor Actor, p *models.Paper) bool {
	if containsString(p.AuthorIDs(), actor.UserID) || p.PeerReview.IsAssigned(actor.UserID) {
		return true
	}
	if _, err := s.store.FindAssignment(ctx, p.ID, actor.UserID); err == nil {
		return true
	}
	return s.canManage(ctx, actor, p)
}

func (s *ReviewWorkflowService) requireAuthor(actor Actor, p *models.Paper) error {
	if !p.IsAuthor(actor.UserID) {
		return forbidden("only the paper's authors may do this")
	}
	return nil
}

func (s *ReviewWorkflowService) requireManager(ctx context.Context, actor Actor, p *models.Paper) error {
	if !s.canManage(ctx, actor, p) {
		return forbidden("only an editor or the hub owner may do this")
	}
	return nil
}

/* ==========================
   Papers
   ========================== */

type CreatePaperInput struct {
	Title                 string   `json:"title" validate:"required,max=500"`
	Abstract              string   `json:"abstract" validate:"max=10000"`
	Keywords              []string `json:"keywords" validate:"max=20,dive,max=100"`
	FileURL               string   `json:"fileUrl" validate:"omitempty,url"`
	CorrespondingAuthorID string   `json:"correspondingAuthorId"`
	CoAuthorIDs           []string `json:"coAuthorIds" validate:"max=30"`
	HubID                 string   `json:"hubId"`
}

func (s *ReviewWorkflowService) CreatePaper(ctx context.Context, actor Actor, in CreatePaperInput) (*models.Paper, error) {
	in.Title = utils.SanitizeInput(in.Title)
	in.Abstract = utils.SanitizeInput(in.Abstract)
	for i := range in.Keywords {
		in.Keywords[i] = utils.SanitizeInput(in.Keywords[i])
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	corresponding := in.CorrespondingAuthorID
	if corresponding == "" {
		corresponding = actor.UserID
	}
	people := uniqueNonEmpty(append([]string{corresponding}, in.CoAuthorIDs...))
	found, err := s.store.FindUsers(ctx, people)
	if err != nil {
		return nil, storeErr(err, "users")
	}
	if len(found) != len(people) {
		return nil, fmt.Errorf("%w: unknown corresponding author or co-author", ErrValidation)
	}

	now := s.now()
	p := &models.Paper{
		ID:                  uuid.NewString(),
		Title:               in.Title,
		Abstract:            in.Abstract,
		Keywords:            in.Keywords,
		FileURL:             in.FileURL,
		MainAuthor:          models.RefTo[models.User](actor.UserID),
		CorrespondingAuthor: models.RefTo[models.User](corresponding),
		SubmittedBy:         models.RefTo[models.User](actor.UserID),
		Status:              models.StatusDraft,
		ReviewRound:         1,
		PeerReview: models.PeerReview{
			ReviewType:   "double_blind",
			ReviewStatus: "not_started",
		},
		PhaseTimestamps: map[string]time.Time{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, id := range uniqueNonEmpty(in.CoAuthorIDs) {
		p.CoAuthors = append(p.CoAuthors, models.RefTo[models.User](id))
	}
	if in.HubID != "" {
		if _, err := s.store.FindHub(ctx, in.HubID); err != nil {
			return nil, storeErr(err, "hub")
		}
		p.Hub = models.RefTo[models.Hub](in.HubID)
	}
	InitializeSlots(p)

	if err := s.store.CreatePaper(ctx, p); err != nil {
		return nil, storeErr(err, "paper")
	}
	return p, nil
}

// GetPaper returns the paper with its author references resolved. Reviewers
// of a double-blind paper get it without its authors.
func (s *ReviewWorkflowService) GetPaper(ctx context.Context, actor Actor, paperID string) (*models.Paper, error) {
	p, err := s.loadPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if !s.canView(ctx, actor, p) {
		return nil, forbidden("you are not involved with this paper")
	}
	if containsString(p.AuthorIDs(), actor.UserID) || s.canManage(ctx, actor, p) {
		s.resolveAuthors(ctx, p)
	} else {
		blindAuthors(p)
	}
	return p, nil
}

func blindAuthors(p *models.Paper) {
	if p.PeerReview.ReviewType != "double_blind" {
		return
	}
	p.MainAuthor = models.Ref[models.User]{}
	p.CorrespondingAuthor = models.Ref[models.User]{}
	p.SubmittedBy = models.Ref[models.User]{}
	p.CoAuthors = nil
}

func (s *ReviewWorkflowService) resolveAuthors(ctx context.Context, p *models.Paper) {
	users, err := s.store.FindUsers(ctx, p.AuthorIDs())
	if err != nil {
		s.log.WithError(err).WithField("paper_id", p.ID).Warn("author lookup failed")
		return
	}
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	resolve := func(r models.Ref[models.User]) models.Ref[models.User] {
		if u, ok := byID[models.ResolveID(r)]; ok {
			return models.Resolved(u)
		}
		return r
	}
	p.MainAuthor = resolve(p.MainAuthor)
	p.CorrespondingAuthor = resolve(p.CorrespondingAuthor)
	p.SubmittedBy = resolve(p.SubmittedBy)
	for i := range p.CoAuthors {
		p.CoAuthors[i] = resolve(p.CoAuthors[i])
	}
}

type ListPapersInput struct {
	Scope  string             `form:"scope" validate:"omitempty,oneof=authored reviewing hub all"`
	HubID  string             `form:"hubId"`
	Status models.PaperStatus `form:"status"`
	Limit  int                `form:"limit"`
	Offset int                `form:"offset"`
}

func (s *ReviewWorkflowService) ListPapers(ctx context.Context, actor Actor, in ListPapersInput) ([]models.Paper, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	f := storage.PaperFilter{Status: in.Status, Limit: in.Limit, Offset: in.Offset}

	switch in.Scope {
	case "reviewing":
		f.ReviewerID = actor.UserID
	case "hub":
		if in.HubID == "" {
			return nil, fmt.Errorf("%w: hubId is required for hub scope", ErrValidation)
		}
		if !actor.IsEditor() && s.hubOwner(ctx, in.HubID) != actor.UserID {
			return nil, forbidden("only the hub owner may list its papers")
		}
		f.HubID = in.HubID
	case "all":
		if !actor.IsEditor() {
			return nil, forbidden("only editors may list every paper")
		}
	default:
		f.AuthorID = actor.UserID
	}

	papers, err := s.store.ListPapers(ctx, f)
	if err != nil {
		return nil, storeErr(err, "papers")
	}
	if in.Scope == "reviewing" && !actor.IsEditor() {
		for i := range papers {
			if !containsString(papers[i].AuthorIDs(), actor.UserID) {
				blindAuthors(&papers[i])
			}
		}
	}
	return papers, nil
}

// SubmitPaper moves a draft into negotiation. Papers attached to a hub invite
// the hub's reviewer roster.
func (s *ReviewWorkflowService) SubmitPaper(ctx context.Context, actor Actor, paperID string) (*models.Paper, error) {
	var fired Transition
	p, err := s.mutatePaper(ctx, paperID, func(p *models.Paper) error {
		if err := s.requireAuthor(actor, p); err != nil {
			return err
		}
		InitializeSlots(p)
		t, err := ApplyTransition(p, EventSubmit, s.now())
		fired = t
		return err
	})
	if err != nil {
		return nil, err
	}
	hubID := models.ResolveID(p.Hub)
	s.announce(ctx, p, fired, hubID, actor.UserID)

	if hubID != "" {
		p = s.inviteHubRoster(ctx, p, hubID)
	}
	return p, nil
}

func (s *ReviewWorkflowService) inviteHubRoster(ctx context.Context, p *models.Paper, hubID string) *models.Paper {
	hub, err := s.store.FindHub(ctx, hubID)
	if err != nil {
		s.log.WithError(err).WithField("hub_id", hubID).Warn("hub roster unavailable")
		return p
	}
	latest := p
	for _, reviewerID := range hub.Reviewers {
		if containsString(p.AuthorIDs(), reviewerID) {
			continue
		}
		updated, _, err := s.invite(ctx, p.ID, reviewerID, nil)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"paper_id": p.ID, "reviewer_id": reviewerID}).Warn("hub roster invitation failed")
			continue
		}
		latest = updated
	}
	return latest
}

/* ==========================
   Notifications
   ========================== */

func (s *ReviewWorkflowService) audience(ctx context.Context, p *models.Paper, audiences []Audience, hubID string) []string {
	var ids []string
	for _, a := range audiences {
		switch a {
		case AudienceAuthors:
			ids = append(ids, p.AuthorIDs()...)
		case AudienceReviewers:
			ids = append(ids, p.PeerReview.AssignedReviewers...)
		case AudienceHubOwner:
			ids = append(ids, s.hubOwner(ctx, hubID))
		}
	}
	return uniqueNonEmpty(ids)
}

func without(ids []string, skip string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}

// announce tells the transition's audience about the new status. It runs
// only after the paper write has committed.
func (s *ReviewWorkflowService) announce(ctx context.Context, p *models.Paper, t Transition, hubID, actorID string) {
	s.announceTo(ctx, p, t, hubID, without(s.audience(ctx, p, t.Notify, hubID), actorID))
}

func (s *ReviewWorkflowService) announceTo(ctx context.Context, p *models.Paper, t Transition, hubID string, recipients []string) {
	if s.notifier == nil || t.Event == "" {
		return
	}
	priority := models.PriorityNormal
	if p.Status.IsTerminal() {
		priority = models.PriorityHigh
	}
	s.notifier.Notify(ctx, NotificationEvent{
		Type:       models.NotificationStatusChanged,
		Recipients: recipients,
		PaperID:    p.ID,
		HubID:      hubID,
		Title:      fmt.Sprintf("Paper %q is now %s", p.Title, p.Status),
		Content:    fmt.Sprintf("The paper %q moved to %s (review round %d).", p.Title, p.Status, p.ReviewRound),
		Priority:   priority,
		Metadata:   map[string]string{"event": string(t.Event), "status": string(p.Status)},
	})
}

func (s *ReviewWorkflowService) notify(ctx context.Context, ev NotificationEvent) {
	if s.notifier == nil {
		return
	}
	ev.Title = strings.TrimSpace(ev.Title)
	s.notifier.Notify(ctx, ev)
}

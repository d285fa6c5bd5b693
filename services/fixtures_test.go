package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"peer-review-api/models"
	"peer-review-api/storage/inmem"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []NotificationEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) ofType(typ string) []NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []NotificationEvent
	for _, ev := range n.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *inmem.DB
	notifier *recordingNotifier
	workflow *ReviewWorkflowService
	now      time.Time

	author, coauthor, editor, owner Actor
	reviewers                       []Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       inmem.New(),
		notifier: &recordingNotifier{},
		now:      baseTime,
		author:   Actor{UserID: "u-author", Role: models.RoleAuthor},
		coauthor: Actor{UserID: "u-coauthor", Role: models.RoleAuthor},
		editor:   Actor{UserID: "u-editor", Role: models.RoleEditor},
		owner:    Actor{UserID: "u-owner", Role: models.RoleReviewer},
	}
	for _, id := range []string{"u-r1", "u-r2", "u-r3", "u-r4"} {
		f.reviewers = append(f.reviewers, Actor{UserID: id, Role: models.RoleReviewer})
	}
	for _, a := range append([]Actor{f.author, f.coauthor, f.editor, f.owner}, f.reviewers...) {
		u := &models.User{ID: a.UserID, Name: a.UserID, Email: a.UserID + "@example.org", Role: a.Role}
		if err := f.db.CreateUser(f.ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", a.UserID, err)
		}
	}

	f.workflow = NewReviewWorkflowService(f.db, f.notifier, models.DefaultReviewDays)
	f.workflow.SetClock(f.clock)
	return f
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) createHub(reviewers ...string) *models.Hub {
	f.t.Helper()
	h := &models.Hub{
		ID:        "hub-1",
		Name:      "Workshop",
		Owner:     models.RefTo[models.User](f.owner.UserID),
		Reviewers: reviewers,
		CreatedAt: f.now,
	}
	if err := f.db.CreateHub(f.ctx, h); err != nil {
		f.t.Fatalf("create hub: %v", err)
	}
	return h
}

func (f *fixture) createPaper(hubID string) *models.Paper {
	f.t.Helper()
	p, err := f.workflow.CreatePaper(f.ctx, f.author, CreatePaperInput{
		Title:       "Consensus under partial synchrony",
		Abstract:    "We study ...",
		Keywords:    []string{"consensus"},
		CoAuthorIDs: []string{f.coauthor.UserID},
		HubID:       hubID,
	})
	if err != nil {
		f.t.Fatalf("CreatePaper returned error: %v", err)
	}
	return p
}

func (f *fixture) submitted(hubID string) *models.Paper {
	f.t.Helper()
	p := f.createPaper(hubID)
	p, err := f.workflow.SubmitPaper(f.ctx, f.author, p.ID)
	if err != nil {
		f.t.Fatalf("SubmitPaper returned error: %v", err)
	}
	return p
}

func (f *fixture) invite(paperID string, reviewers ...Actor) {
	f.t.Helper()
	for _, r := range reviewers {
		if _, err := f.workflow.InviteReviewer(f.ctx, f.editor, paperID, InviteReviewerInput{ReviewerID: r.UserID}); err != nil {
			f.t.Fatalf("InviteReviewer(%s) returned error: %v", r.UserID, err)
		}
	}
}

func (f *fixture) accept(paperID string, reviewers ...Actor) *models.Paper {
	f.t.Helper()
	var p *models.Paper
	for _, r := range reviewers {
		var err error
		p, _, err = f.workflow.AcceptReview(f.ctx, r, paperID, AcceptReviewInput{})
		if err != nil {
			f.t.Fatalf("AcceptReview(%s) returned error: %v", r.UserID, err)
		}
	}
	return p
}

// inReview returns a paper in review with reviewers 1-3 accepted.
func (f *fixture) inReview() *models.Paper {
	f.t.Helper()
	p := f.submitted("")
	f.invite(p.ID, f.reviewers[:3]...)
	p = f.accept(p.ID, f.reviewers[:3]...)
	if p.Status != models.StatusInReview {
		f.t.Fatalf("expected paper in review after three acceptances, got %q", p.Status)
	}
	return p
}

func (f *fixture) review(paperID string, r Actor) (*models.Review, *models.Paper) {
	f.t.Helper()
	review, p, err := f.workflow.SubmitReview(f.ctx, r, paperID, sampleReview())
	if err != nil {
		f.t.Fatalf("SubmitReview(%s) returned error: %v", r.UserID, err)
	}
	return review, p
}

func sampleReview() SubmitReviewInput {
	return SubmitReviewInput{
		Scores: models.ReviewScores{
			Originality: 4, Methodology: 3, Significance: 4, Clarity: 5,
			TechnicalQuality: 3, Results: 4, Conclusions: 4, References: 3,
		},
		Strengths:            "Clear model.",
		Weaknesses:           "Evaluation is thin.",
		CommentsToAuthor:     "Please extend section 5.",
		ConfidentialComments: "Borderline.",
		Recommendation:       models.RecommendMinorRevision,
	}
}

func assertSlotConservation(t *testing.T, p *models.Paper) {
	t.Helper()
	if len(p.ReviewSlots) != models.MaxReviewSlots {
		t.Fatalf("expected %d slots, got %d", models.MaxReviewSlots, len(p.ReviewSlots))
	}
	available := 0
	for _, s := range p.ReviewSlots {
		if s.Status == models.SlotAvailable || s.Status == models.SlotDeclined {
			available++
		}
	}
	if p.AvailableSlots != available {
		t.Fatalf("availableSlots=%d but %d slots are available or declined", p.AvailableSlots, available)
	}
	if p.AvailableSlots < 0 || p.AvailableSlots > p.MaxReviewSlots {
		t.Fatalf("availableSlots=%d out of range [0,%d]", p.AvailableSlots, p.MaxReviewSlots)
	}
}

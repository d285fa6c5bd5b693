package services

import (
	"errors"
	"testing"

	"peer-review-api/models"
)

func TestCreateHubRequiresEditor(t *testing.T) {
	f := newFixture(t)
	hubs := NewHubService(f.db, f.workflow)

	if _, err := hubs.CreateHub(f.ctx, f.author, CreateHubInput{Name: "Workshop"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := hubs.CreateHub(f.ctx, f.editor, CreateHubInput{Name: "Workshop", Reviewers: []string{"ghost"}}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for an unknown reviewer, got %v", err)
	}

	h, err := hubs.CreateHub(f.ctx, f.editor, CreateHubInput{Name: " Workshop ", OwnerID: f.owner.UserID, Reviewers: []string{f.reviewers[0].UserID}})
	if err != nil {
		t.Fatalf("CreateHub returned error: %v", err)
	}
	if h.Name != "Workshop" || !h.IsOwner(f.owner.UserID) || !h.HasReviewer(f.reviewers[0].UserID) {
		t.Fatalf("unexpected hub: %#v", h)
	}

	got, err := hubs.GetHub(f.ctx, h.ID)
	if err != nil {
		t.Fatalf("GetHub returned error: %v", err)
	}
	if got.Owner.Entity == nil || got.Owner.Entity.ID != f.owner.UserID {
		t.Fatalf("owner not resolved: %#v", got.Owner)
	}
}

func TestAddReviewerInvitesToOpenHubPapers(t *testing.T) {
	f := newFixture(t)
	hubs := NewHubService(f.db, f.workflow)
	f.createHub(f.reviewers[0].UserID)
	open := f.submitted("hub-1")
	draft := f.createPaper("hub-1")

	if _, err := hubs.AddReviewer(f.ctx, f.reviewers[0], "hub-1", AddHubReviewerInput{ReviewerID: f.reviewers[1].UserID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a roster member, got %v", err)
	}

	res, err := hubs.AddReviewer(f.ctx, f.owner, "hub-1", AddHubReviewerInput{ReviewerID: f.reviewers[1].UserID})
	if err != nil {
		t.Fatalf("AddReviewer returned error: %v", err)
	}
	if !res.Hub.HasReviewer(f.reviewers[1].UserID) || len(res.Invited) != 1 || res.Invited[0] != open.ID {
		t.Fatalf("unexpected result: %#v", res)
	}

	a, err := f.db.FindAssignment(f.ctx, open.ID, f.reviewers[1].UserID)
	if err != nil || a.Status != models.AssignmentPending {
		t.Fatalf("expected a pending assignment, got %#v err=%v", a, err)
	}
	if _, err := f.db.FindAssignment(f.ctx, draft.ID, f.reviewers[1].UserID); err == nil {
		t.Fatalf("drafts must not receive invitations")
	}

	// adding the same reviewer again neither duplicates the roster nor re-invites
	res, err = hubs.AddReviewer(f.ctx, f.owner, "hub-1", AddHubReviewerInput{ReviewerID: f.reviewers[1].UserID})
	if err != nil {
		t.Fatalf("second AddReviewer returned error: %v", err)
	}
	if len(res.Hub.Reviewers) != 2 {
		t.Fatalf("roster duplicated: %v", res.Hub.Reviewers)
	}
	if invitations := f.notifier.ofType(models.NotificationReviewInvitation); len(invitations) != 2 {
		t.Fatalf("expected two invitations in total, got %d", len(invitations))
	}
}

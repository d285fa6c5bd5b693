package storage

import (
	"time"

	"peer-review-api/models"
)

// ClonePaper returns a deep copy so callers never share slices with a backend.
// References are reduced to their ids, the form every backend persists.
func ClonePaper(p *models.Paper) *models.Paper {
	if p == nil {
		return nil
	}
	out := *p
	out.Keywords = append([]string(nil), p.Keywords...)
	out.MainAuthor = idOnly(p.MainAuthor)
	out.CorrespondingAuthor = idOnly(p.CorrespondingAuthor)
	out.SubmittedBy = idOnly(p.SubmittedBy)
	out.Hub = idOnly(p.Hub)
	out.CoAuthors = make([]models.Ref[models.User], len(p.CoAuthors))
	for i, ref := range p.CoAuthors {
		out.CoAuthors[i] = idOnly(ref)
	}
	out.ReviewSlots = make([]models.ReviewSlot, len(p.ReviewSlots))
	for i, s := range p.ReviewSlots {
		s.ReviewerID = cloneString(s.ReviewerID)
		s.InvitedAt = cloneTime(s.InvitedAt)
		s.AcceptedAt = cloneTime(s.AcceptedAt)
		s.DeclinedAt = cloneTime(s.DeclinedAt)
		out.ReviewSlots[i] = s
	}
	out.PeerReview.AssignedReviewers = append([]string(nil), p.PeerReview.AssignedReviewers...)
	out.PeerReview.Reviews = append([]string(nil), p.PeerReview.Reviews...)
	if p.PeerReview.WithdrawnReviews != nil {
		out.PeerReview.WithdrawnReviews = append([]string(nil), p.PeerReview.WithdrawnReviews...)
	}
	out.PeerReview.Responses = make([]models.ReviewerResponse, len(p.PeerReview.Responses))
	for i, r := range p.PeerReview.Responses {
		r.ResponseDate = cloneTime(r.ResponseDate)
		r.CompletedAt = cloneTime(r.CompletedAt)
		out.PeerReview.Responses[i] = r
	}
	if p.PhaseTimestamps != nil {
		out.PhaseTimestamps = make(map[string]time.Time, len(p.PhaseTimestamps))
		for k, v := range p.PhaseTimestamps {
			out.PhaseTimestamps[k] = v
		}
	}
	return &out
}

func CloneAssignment(a *models.ReviewAssignment) *models.ReviewAssignment {
	if a == nil {
		return nil
	}
	out := *a
	out.AcceptedAt = cloneTime(a.AcceptedAt)
	out.CompletedAt = cloneTime(a.CompletedAt)
	out.Deadline = cloneTime(a.Deadline)
	out.LastReminderAt = cloneTime(a.LastReminderAt)
	if a.CustomDeadlineDays != nil {
		d := *a.CustomDeadlineDays
		out.CustomDeadlineDays = &d
	}
	return &out
}

func idOnly[T models.Identifiable](r models.Ref[T]) models.Ref[T] {
	return models.RefTo[T](models.ResolveID(r))
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

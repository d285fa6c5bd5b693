package services

import (
	"time"

	"peer-review-api/models"
)

// InitializeSlots gives a paper its three empty review slots. Papers that
// already carry slots only get their counters recomputed.
func InitializeSlots(p *models.Paper) {
	if len(p.ReviewSlots) == 0 {
		p.ReviewSlots = make([]models.ReviewSlot, models.MaxReviewSlots)
		for i := range p.ReviewSlots {
			p.ReviewSlots[i] = models.ReviewSlot{SlotNumber: i + 1, Status: models.SlotAvailable}
		}
	}
	p.MaxReviewSlots = models.MaxReviewSlots
	recountAvailable(p)
}

// ResetSlots empties every slot of a paper that starts review over.
func ResetSlots(p *models.Paper) {
	p.ReviewSlots = nil
	InitializeSlots(p)
}

// OccupySlot hands a slot to reviewerID on acceptance. A reviewer who already
// occupies a slot keeps it and nothing changes.
func OccupySlot(p *models.Paper, reviewerID string, now time.Time) error {
	InitializeSlots(p)

	target := -1
	for i, s := range p.ReviewSlots {
		if s.HeldBy(reviewerID) {
			if s.Status == models.SlotOccupied {
				return nil
			}
			if s.CountsAsAvailable() {
				target = i
			}
			break
		}
	}

	if p.AvailableSlots <= 0 {
		return ErrSlotsExhausted
	}
	if target < 0 {
		for i, s := range p.ReviewSlots {
			if s.CountsAsAvailable() {
				target = i
				break
			}
		}
	}
	if target < 0 {
		return ErrSlotsExhausted
	}

	// clear the reviewer's other declined claims
	releaseDeclined(p, reviewerID, target)

	id := reviewerID
	at := now
	slot := &p.ReviewSlots[target]
	slot.ReviewerID = &id
	slot.Status = models.SlotOccupied
	slot.AcceptedAt = &at
	slot.DeclinedAt = nil
	recountAvailable(p)
	return nil
}

// DeclineSlot records a refusal. The reviewer's own slot is marked declined,
// otherwise the first untouched slot is. A declined slot stays available.
func DeclineSlot(p *models.Paper, reviewerID string, now time.Time) {
	InitializeSlots(p)
	at := now

	for i := range p.ReviewSlots {
		s := &p.ReviewSlots[i]
		if !s.HeldBy(reviewerID) {
			continue
		}
		if s.Status != models.SlotDeclined {
			s.Status = models.SlotDeclined
			s.AcceptedAt = nil
			s.DeclinedAt = &at
		}
		recountAvailable(p)
		return
	}

	for i := range p.ReviewSlots {
		s := &p.ReviewSlots[i]
		if s.Status == models.SlotAvailable {
			id := reviewerID
			s.ReviewerID = &id
			s.Status = models.SlotDeclined
			s.DeclinedAt = &at
			break
		}
	}
	recountAvailable(p)
}

// FreeSlot releases reviewerID's slot and strips the reviewer from the
// peer-review sub-document. It reports whether a slot was held.
func FreeSlot(p *models.Paper, reviewerID string) bool {
	found := false
	for i := range p.ReviewSlots {
		if p.ReviewSlots[i].HeldBy(reviewerID) {
			p.ReviewSlots[i] = models.ReviewSlot{
				SlotNumber: p.ReviewSlots[i].SlotNumber,
				Status:     models.SlotAvailable,
			}
			found = true
		}
	}
	recountAvailable(p)

	responses := p.PeerReview.Responses[:0]
	for _, r := range p.PeerReview.Responses {
		if r.ReviewerID != reviewerID {
			responses = append(responses, r)
		}
	}
	p.PeerReview.Responses = responses
	p.PeerReview.AssignedReviewers = removeString(p.PeerReview.AssignedReviewers, reviewerID)
	return found
}

func releaseDeclined(p *models.Paper, reviewerID string, keep int) {
	for i := range p.ReviewSlots {
		if i != keep && p.ReviewSlots[i].HeldBy(reviewerID) && p.ReviewSlots[i].Status == models.SlotDeclined {
			p.ReviewSlots[i].ReviewerID = nil
		}
	}
}

func recountAvailable(p *models.Paper) {
	n := 0
	for _, s := range p.ReviewSlots {
		if s.CountsAsAvailable() {
			n++
		}
	}
	p.AvailableSlots = n
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

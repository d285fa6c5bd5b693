package services

import (
	"strconv"
	"strings"
	"time"

	"peer-review-api/models"
)

type WorkflowEvent string

const (
	EventSubmit               WorkflowEvent = "submit"
	EventReviewersSecured     WorkflowEvent = "reviewers_secured"
	EventRoundReviewsComplete WorkflowEvent = "round_reviews_complete"
	EventSubmitCorrections    WorkflowEvent = "submit_corrections"
	EventRequestPublication   WorkflowEvent = "request_publication"
	EventSelfPublish          WorkflowEvent = "self_publish"
	EventApprovePublication   WorkflowEvent = "approve_publication"
	EventRejectPublication    WorkflowEvent = "reject_publication"
	EventFinalAccept          WorkflowEvent = "final_accept"
	EventFinalReject          WorkflowEvent = "final_reject"
	EventWithdraw             WorkflowEvent = "withdraw"
)

type Audience string

const (
	AudienceAuthors   Audience = "authors"
	AudienceReviewers Audience = "reviewers"
	AudienceHubOwner  Audience = "hub_owner"
)

// anyRound matches every review round; anyOpen matches every non-terminal status.
const (
	anyRound = 0
	anyOpen  = models.PaperStatus("*")
)

// Transition is one row of the paper workflow table.
type Transition struct {
	From      models.PaperStatus
	Round     int
	Event     WorkflowEvent
	To        models.PaperStatus
	NextRound int
	// PhaseKey may contain {round}, replaced by the round the paper is leaving.
	PhaseKey  string
	Notify    []Audience
	UnlinkHub bool
}

var workflowTable = []Transition{
	{From: models.StatusDraft, Round: anyRound, Event: EventSubmit, To: models.StatusUnderNegotiation,
		PhaseKey: "submitted", Notify: []Audience{AudienceAuthors, AudienceHubOwner}},
	{From: models.StatusUnderNegotiation, Round: 1, Event: EventReviewersSecured, To: models.StatusInReview,
		PhaseKey: "round1Start", Notify: []Audience{AudienceAuthors, AudienceReviewers}},
	{From: models.StatusInReview, Round: anyRound, Event: EventRoundReviewsComplete, To: models.StatusNeedingCorrections,
		PhaseKey: "round{round}Complete", Notify: []Audience{AudienceAuthors, AudienceHubOwner}},
	{From: models.StatusNeedingCorrections, Round: 1, Event: EventSubmitCorrections, To: models.StatusInReview, NextRound: 2,
		PhaseKey: "round2Start", Notify: []Audience{AudienceReviewers, AudienceHubOwner}},
	{From: models.StatusNeedingCorrections, Round: 2, Event: EventRequestPublication, To: models.StatusUnderNegotiation,
		PhaseKey: "publicationRequested", Notify: []Audience{AudienceHubOwner}},
	{From: models.StatusNeedingCorrections, Round: 2, Event: EventSelfPublish, To: models.StatusPublished,
		PhaseKey: "published", Notify: []Audience{AudienceAuthors, AudienceReviewers}},
	{From: models.StatusUnderNegotiation, Round: 2, Event: EventApprovePublication, To: models.StatusPublished,
		PhaseKey: "published", Notify: []Audience{AudienceAuthors, AudienceReviewers}},
	{From: models.StatusUnderNegotiation, Round: 2, Event: EventRejectPublication, To: models.StatusNeedingCorrections,
		PhaseKey: "publicationRejected", Notify: []Audience{AudienceAuthors}},
	{From: anyOpen, Round: anyRound, Event: EventFinalAccept, To: models.StatusAccepted,
		PhaseKey: "finalDecision", Notify: []Audience{AudienceAuthors, AudienceReviewers}},
	{From: anyOpen, Round: anyRound, Event: EventFinalReject, To: models.StatusRejected,
		PhaseKey: "finalDecision", Notify: []Audience{AudienceAuthors, AudienceReviewers}},
	{From: models.StatusInReview, Round: 2, Event: EventWithdraw, To: models.StatusDraft,
		PhaseKey: "withdrawn", Notify: []Audience{AudienceReviewers, AudienceHubOwner}, UnlinkHub: true},
	{From: models.StatusNeedingCorrections, Round: 2, Event: EventWithdraw, To: models.StatusDraft,
		PhaseKey: "withdrawn", Notify: []Audience{AudienceReviewers, AudienceHubOwner}, UnlinkHub: true},
	{From: models.StatusUnderNegotiation, Round: 2, Event: EventWithdraw, To: models.StatusDraft,
		PhaseKey: "withdrawn", Notify: []Audience{AudienceReviewers, AudienceHubOwner}, UnlinkHub: true},
}

func (t Transition) matches(status models.PaperStatus, round int, event WorkflowEvent) bool {
	if t.Event != event {
		return false
	}
	if t.From == anyOpen {
		if status.IsTerminal() {
			return false
		}
	} else if t.From != status {
		return false
	}
	return t.Round == anyRound || t.Round == round
}

// LookupTransition finds the row for event in the paper's current state.
func LookupTransition(status models.PaperStatus, round int, event WorkflowEvent) (Transition, error) {
	for _, t := range workflowTable {
		if t.matches(status, round, event) {
			return t, nil
		}
	}
	return Transition{}, invalidTransition("%s is not allowed while paper is %q in round %d", event, status, round)
}

// CanTransition reports whether event is legal for p right now.
func CanTransition(p *models.Paper, event WorkflowEvent) bool {
	_, err := LookupTransition(p.Status, p.ReviewRound, event)
	return err == nil
}

// ApplyTransition moves p along the table row for event.
func ApplyTransition(p *models.Paper, event WorkflowEvent, now time.Time) (Transition, error) {
	t, err := LookupTransition(p.Status, p.ReviewRound, event)
	if err != nil {
		return Transition{}, err
	}

	leaving := p.ReviewRound
	p.Status = t.To
	if t.NextRound > 0 {
		p.ReviewRound = t.NextRound
	}
	if t.UnlinkHub {
		p.Hub = models.Ref[models.Hub]{}
	}
	if t.PhaseKey != "" {
		SetPhaseTimestamp(p, strings.ReplaceAll(t.PhaseKey, "{round}", strconv.Itoa(leaving)), now)
	}
	return t, nil
}

// SetPhaseTimestamp records key only if it has never been recorded.
// It reports whether the value was written.
func SetPhaseTimestamp(p *models.Paper, key string, at time.Time) bool {
	if p.PhaseTimestamps == nil {
		p.PhaseTimestamps = map[string]time.Time{}
	}
	if _, ok := p.PhaseTimestamps[key]; ok {
		return false
	}
	p.PhaseTimestamps[key] = at
	return true
}

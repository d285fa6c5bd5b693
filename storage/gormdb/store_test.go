package gormdb

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"peer-review-api/models"
	"peer-review-api/storage"
)

var paperColumns = []string{
	"id", "title", "abstract", "keywords", "file_url", "main_author_id",
	"corresponding_author_id", "submitted_by_id", "co_author_ids", "hub_id",
	"status", "review_round", "review_slots", "max_review_slots",
	"available_slots", "peer_review", "phase_timestamps", "version",
	"created_at", "updated_at",
}

func TestFindPaperDecodesJSONColumns(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `papers` WHERE id = \\?"),
			columns: paperColumns,
			rows: [][]driver.Value{{
				"p-1", "Graph kernels", "", []byte(`["graphs"]`), "", "u-main",
				"u-main", "u-main", []byte(`["u-co"]`), "h-1",
				"in review", int64(1),
				[]byte(`[{"slotNumber":1,"reviewerId":"r-1","status":"occupied"},{"slotNumber":2,"reviewerId":null,"status":"available"},{"slotNumber":3,"reviewerId":null,"status":"declined"}]`),
				int64(3), int64(2),
				[]byte(`{"assignedReviewers":["r-1"],"responses":[],"reviews":[],"reviewCount":0}`),
				[]byte(`{"inReview":"2024-03-02T00:00:00Z"}`),
				int64(4), created, created,
			}},
		},
	}
	db, state := newScriptedGormDB(t, steps)
	store := New(db)

	p, err := store.FindPaper(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("find paper: %v", err)
	}
	if p.Status != models.StatusInReview || p.Version != 4 {
		t.Fatalf("unexpected paper header %s v%d", p.Status, p.Version)
	}
	if len(p.ReviewSlots) != 3 || !p.ReviewSlots[0].HeldBy("r-1") {
		t.Fatalf("slots not decoded: %+v", p.ReviewSlots)
	}
	if !p.Hub.Is("h-1") || len(p.CoAuthors) != 1 || !p.CoAuthors[0].Is("u-co") {
		t.Fatalf("references not decoded: hub=%v coauthors=%v", p.Hub, p.CoAuthors)
	}
	if _, ok := p.PhaseTimestamps["inReview"]; !ok {
		t.Fatalf("phase timestamps not decoded")
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestFindPaperMissingIsNotFound(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `papers`"),
			columns: paperColumns,
			rows:    [][]driver.Value{},
		},
	}
	db, _ := newScriptedGormDB(t, steps)

	if _, err := New(db).FindPaper(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePaperIsConditionalOnVersion(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `papers` SET .* WHERE \\(?id = \\? AND version = \\?\\)?"),
			result:  scriptedResult{rowsAffected: 1},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `papers` SET .* WHERE \\(?id = \\? AND version = \\?\\)?"),
			result:  scriptedResult{rowsAffected: 0},
		},
	}
	db, state := newScriptedGormDB(t, steps)
	store := New(db)

	p := &models.Paper{ID: "p-1", Status: models.StatusInReview, Version: 7}
	if err := store.UpdatePaper(context.Background(), p); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if p.Version != 8 {
		t.Fatalf("expected version 8, got %d", p.Version)
	}

	stale := &models.Paper{ID: "p-1", Status: models.StatusRejected, Version: 7}
	if err := store.UpdatePaper(context.Background(), stale); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if stale.Version != 7 {
		t.Fatalf("stale version must not change, got %d", stale.Version)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestCreateReviewDuplicateEntry(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO `reviews`"),
			err:     errors.New("Error 1062 (23000): Duplicate entry 'p-1-r-1-1' for key 'idx_review_paper_reviewer_round'"),
		},
	}
	db, _ := newScriptedGormDB(t, steps)

	err := New(db).CreateReview(context.Background(), &models.Review{ID: "x", PaperID: "p-1", ReviewerID: "r-1", ReviewRound: 1})
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestAcquireLockHeldElsewhere(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile(`SELECT GET_LOCK`),
			args:    []driver.Value{"deadline_sweep"},
			columns: []string{"status"},
			rows:    [][]driver.Value{{int64(0)}},
		},
	}
	db, state := newScriptedGormDB(t, steps)

	if _, err := New(db).AcquireLock(context.Background(), "deadline_sweep"); !errors.Is(err, storage.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

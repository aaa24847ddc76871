package db

import (
	"context"
	"testing"
)

func TestRecordEstimate(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	ctx := context.Background()

	est := &Estimate{
		PersonID:   "alice",
		Room:       "kitchen",
		Confidence: 0.82,
		Unix:       1700000000,
	}
	if err := db.RecordEstimate(ctx, est); err != nil {
		t.Fatalf("RecordEstimate failed: %v", err)
	}
	if est.ID == 0 {
		t.Error("expected an ID to be assigned")
	}

	estimates, err := db.RecentEstimates(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("RecentEstimates failed: %v", err)
	}
	if len(estimates) != 1 {
		t.Fatalf("expected 1 estimate, got %d", len(estimates))
	}
	got := estimates[0]
	if got.PersonID != "alice" || got.Room != "kitchen" || got.Confidence != 0.82 || got.Unix != 1700000000 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestRecentEstimatesFiltersByPerson(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	ctx := context.Background()

	for i, person := range []string{"alice", "bob", "alice"} {
		est := &Estimate{
			PersonID: person,
			Room:     "hallway",
			Unix:     float64(1700000000 + i*10),
		}
		if err := db.RecordEstimate(ctx, est); err != nil {
			t.Fatalf("RecordEstimate failed: %v", err)
		}
	}

	alice, err := db.RecentEstimates(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("RecentEstimates failed: %v", err)
	}
	if len(alice) != 2 {
		t.Errorf("expected 2 estimates for alice, got %d", len(alice))
	}

	all, err := db.RecentEstimates(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentEstimates (all) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 estimates overall, got %d", len(all))
	}
	// Most recent first
	if all[0].Unix != 1700000020 {
		t.Errorf("expected newest estimate first, got %v", all[0].Unix)
	}
}

func TestLatestEstimates(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	ctx := context.Background()

	seed := []Estimate{
		{PersonID: "alice", Room: "kitchen", Unix: 1700000000},
		{PersonID: "alice", Room: "bedroom", Unix: 1700000100},
		{PersonID: "bob", Room: "hallway", Unix: 1700000050},
	}
	for i := range seed {
		if err := db.RecordEstimate(ctx, &seed[i]); err != nil {
			t.Fatalf("RecordEstimate failed: %v", err)
		}
	}

	latest, err := db.LatestEstimates(ctx)
	if err != nil {
		t.Fatalf("LatestEstimates failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 people, got %d", len(latest))
	}
	if latest["alice"].Room != "bedroom" {
		t.Errorf("expected alice's latest room bedroom, got %q", latest["alice"].Room)
	}
	if latest["bob"].Room != "hallway" {
		t.Errorf("expected bob's latest room hallway, got %q", latest["bob"].Room)
	}
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JakeFAU/jobsweep/internal/id/uuid"
	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/storage"
)

func TestJobStoreUpsertKeepsRecordID(t *testing.T) {
	t.Parallel()

	store := NewJobStore(uuid.New())
	ctx := context.Background()
	job := jobs.NormalizedJob{ID: "42", Title: "Go Engineer", Source: "adzuna"}

	first, err := store.AddJob(ctx, job)
	if err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}
	job.Title = "Senior Go Engineer"
	second, err := store.AddJob(ctx, job)
	if err != nil {
		t.Fatalf("AddJob() upsert error = %v", err)
	}
	if first != second {
		t.Fatalf("expected stable record id, got %s then %s", first, second)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one record, got %d", store.Len())
	}
	listed, err := store.ListJobs(ctx, "", 0)
	if err != nil || len(listed) != 1 || listed[0].Title != "Senior Go Engineer" {
		t.Fatalf("ListJobs() unexpected result: jobs=%v err=%v", listed, err)
	}

	// Same source ID under another source is a separate record.
	job.Source = "jsearch"
	if _, err := store.AddJob(ctx, job); err != nil {
		t.Fatalf("AddJob() other source error = %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected two records, got %d", store.Len())
	}
}

func TestJobStoreListFiltersAndLimits(t *testing.T) {
	t.Parallel()

	store := NewJobStore(&seqIDs{})
	ctx := context.Background()
	for i := range 5 {
		source := "adzuna"
		if i%2 == 1 {
			source = "web3career"
		}
		if _, err := store.AddJob(ctx, jobs.NormalizedJob{ID: fmt.Sprint(i), Title: "t", Source: source}); err != nil {
			t.Fatalf("AddJob(%d) error = %v", i, err)
		}
	}

	got, err := store.ListJobs(ctx, "ADZUNA", 2)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "4" || got[1].ID != "2" {
		t.Fatalf("expected newest adzuna jobs first, got %+v", got)
	}
	all, _ := store.ListJobs(ctx, "", 10)
	if len(all) != 5 {
		t.Fatalf("expected 5 jobs, got %d", len(all))
	}
}

func TestJobStoreRejectsMissingKey(t *testing.T) {
	t.Parallel()

	store := NewJobStore(uuid.New())
	_, err := store.AddJob(context.Background(), jobs.NormalizedJob{Title: "no id", Source: "adzuna"})
	if !errors.Is(err, storage.ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	store = NewJobStore(failingIDs{})
	_, err = store.AddJob(context.Background(), jobs.NormalizedJob{ID: "1", Source: "adzuna"})
	if err == nil {
		t.Fatal("expected id generator error")
	}
}

// --- fakes ---

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("rec-%d", s.n), nil
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

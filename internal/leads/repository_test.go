package leads

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryRepository_CreateIsIdempotentPerSession(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	req := &CreateLeadRequest{BusinessID: "biz", SessionID: "s1", Name: "Dana", Email: "dana@example.com"}

	first, err := repo.Create(ctx, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := repo.Create(ctx, req)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same lead for session, got %s and %s", first.ID, second.ID)
	}
	if first.Status != StatusNew || first.Source != "chat" {
		t.Fatalf("unexpected defaults: status=%s source=%s", first.Status, first.Source)
	}
}

func TestInMemoryRepository_Validation(t *testing.T) {
	repo := NewInMemoryRepository()
	tests := []struct {
		req  CreateLeadRequest
		want error
	}{
		{CreateLeadRequest{Name: "Dana", Email: "d@example.com"}, ErrMissingBusinessID},
		{CreateLeadRequest{BusinessID: "biz", Email: "d@example.com"}, ErrInvalidName},
		{CreateLeadRequest{BusinessID: "biz", Name: "Dana"}, ErrMissingContact},
	}
	for _, tt := range tests {
		if _, err := repo.Create(context.Background(), &tt.req); !errors.Is(err, tt.want) {
			t.Errorf("expected %v, got %v", tt.want, err)
		}
	}
}

func TestInMemoryRepository_ListAndScope(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}

	for _, name := range []string{"A", "B", "C"} {
		if _, err := repo.Create(ctx, &CreateLeadRequest{BusinessID: "biz", Name: name, Phone: "555-123-4567"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	other, _ := repo.Create(ctx, &CreateLeadRequest{BusinessID: "other", Name: "Z", Phone: "555-123-4567"})

	got, err := repo.List(ctx, "biz", ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Name != "C" || got[1].Name != "B" {
		t.Fatalf("expected newest first [C B], got %+v", got)
	}

	got, _ = repo.List(ctx, "biz", ListFilter{Since: base.Add(2 * time.Hour)})
	if len(got) != 2 {
		t.Fatalf("expected 2 leads since filter, got %d", len(got))
	}

	got, _ = repo.List(ctx, "biz", ListFilter{Offset: 10})
	if len(got) != 0 {
		t.Fatalf("expected empty page, got %d", len(got))
	}

	if _, err := repo.GetByID(ctx, "biz", other.ID); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected cross-business lookup to fail, got %v", err)
	}
}

func TestInMemoryRepository_UpdateStatus(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	lead, _ := repo.Create(ctx, &CreateLeadRequest{BusinessID: "biz", Name: "Dana", Phone: "555-123-4567"})

	updated, err := repo.UpdateStatus(ctx, "biz", lead.ID, StatusContacted)
	if err != nil || updated.Status != StatusContacted {
		t.Fatalf("expected contacted, got %v %v", updated, err)
	}
	if _, err := repo.UpdateStatus(ctx, "biz", lead.ID, StatusNew); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, "biz", "missing", StatusWon); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusNew, StatusContacted}:       true,
		{StatusNew, StatusWon}:             false,
		{StatusContacted, StatusWon}:       true,
		{StatusQualified, StatusContacted}: false,
		{StatusWon, StatusLost}:            false,
		{StatusLost, StatusNew}:            false,
	}
	for pair, want := range allowed {
		if got := pair[0].CanTransition(pair[1]); got != want {
			t.Errorf("%s -> %s: expected %v, got %v", pair[0], pair[1], want, got)
		}
	}
	if Status("bogus").Valid() {
		t.Error("expected bogus status to be invalid")
	}
}

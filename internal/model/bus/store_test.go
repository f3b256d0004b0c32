package bus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreUpdateToPlannedClearsETA(t *testing.T) {
	store := NewMemoryStore(Seed())
	planned := Planned

	updated, ok, err := store.Update(context.Background(), "38", Patch{Status: &planned})
	if err != nil || !ok {
		t.Fatalf("Update ok=%v err=%v", ok, err)
	}
	if updated.Status != Planned || updated.ETA != nil {
		t.Fatalf("expected planned bus without eta, got status=%s eta=%v", updated.Status, updated.ETA)
	}
}

func TestMemoryStoreUpdateRejectsETAOnPlannedBus(t *testing.T) {
	store := NewMemoryStore(Seed())

	_, ok, err := store.Update(context.Background(), "22", Patch{ETA: OptionalInt{Set: true, Value: IntPtr(5)}})
	if !ok || !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch for existing bus, ok=%v err=%v", ok, err)
	}

	got, _, _ := store.FindByID(context.Background(), "22")
	if got.ETA != nil {
		t.Fatalf("rejected update was stored: eta=%d", *got.ETA)
	}
}

func TestMergeLeavesETAWhenLeavingPlanned(t *testing.T) {
	onTime := OnTime
	now := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	seed := Seed()

	merged, err := Patch{Status: &onTime, ETA: OptionalInt{Set: true, Value: IntPtr(7)}}.Merge(seed[2], now)
	if err != nil {
		t.Fatalf("Merge err: %v", err)
	}
	if merged.ETA == nil || *merged.ETA != 7 || !merged.LastUpdated.Equal(now) {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
	if seed[2].ETA != nil {
		t.Fatal("Merge modified its input")
	}
}

func TestMergeValidatesFields(t *testing.T) {
	bad := Status("Lost")
	if _, err := (Patch{Status: &bad}).Merge(Seed()[0], time.Now()); !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}
}

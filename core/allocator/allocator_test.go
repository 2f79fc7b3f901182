package allocator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ottoq/ottoq/core/model"
)

func testInventory() []model.DepotStall {
	return []model.DepotStall{
		{ID: "fc-1", DepotID: "depot-1", Number: 1, Type: model.StallFastCharge, Status: model.StallAvailable, PowerKW: 150},
		{ID: "fc-2", DepotID: "depot-1", Number: 2, Type: model.StallFastCharge, Status: model.StallAvailable, PowerKW: 150},
		{ID: "dc-1", DepotID: "depot-1", Number: 3, Type: model.StallDetailClean, Status: model.StallAvailable},
		{ID: "sb-1", DepotID: "depot-1", Number: 4, Type: model.StallServiceBay, Status: model.StallAvailable},
	}
}

var (
	fastCharge  = []model.StallType{model.StallFastCharge}
	detailClean = []model.StallType{model.StallDetailClean}
	serviceBay  = []model.StallType{model.StallServiceBay}
)

func TestClaimAndRelease(t *testing.T) {
	a, err := New(testInventory())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	now := time.Now()

	s, err := a.Claim(fastCharge, "v1", now, 45*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if s.Status != model.StallOccupied || s.CurrentVehicle != "v1" {
		t.Fatalf("claimed stall not occupied by v1: %+v", s)
	}
	if !s.EstimatedDone.Equal(now.Add(45 * time.Minute)) {
		t.Errorf("estimated done = %v", s.EstimatedDone)
	}

	if err := a.Release(s.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if a.CountFree(model.StallFastCharge) != 2 {
		t.Errorf("release did not return stall to the pool")
	}
}

func TestClaimExhaustion(t *testing.T) {
	a, _ := New(testInventory())
	now := time.Now()
	if _, err := a.Claim(fastCharge, "v1", now, time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Claim(fastCharge, "v2", now, time.Hour); err != nil {
		t.Fatal(err)
	}
	_, err := a.Claim(fastCharge, "v3", now, time.Hour)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when type exhausted, got %v", err)
	}
}

func TestClaimStallMutualExclusion(t *testing.T) {
	a, _ := New(testInventory())
	now := time.Now()

	const claimers = 32
	var wg sync.WaitGroup
	wins := make(chan string, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			if _, err := a.ClaimStall("sb-1", id, now, time.Hour); err == nil {
				wins <- id
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	n := 0
	for range wins {
		n++
	}
	if n != 1 {
		t.Fatalf("exactly one concurrent claim must win, got %d", n)
	}
}

func TestConcurrentClaimsNoDoubleAssign(t *testing.T) {
	a, _ := New(testInventory())
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = a.Claim(fastCharge, string(rune('a'+n)), now, time.Hour)
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, s := range a.Snapshot() {
		if s.CurrentVehicle == "" {
			continue
		}
		if seen[s.CurrentVehicle] {
			t.Fatalf("vehicle %s assigned to two stalls", s.CurrentVehicle)
		}
		seen[s.CurrentVehicle] = true
	}
}

func TestReserveThenClaim(t *testing.T) {
	a, _ := New(testInventory())
	now := time.Now()

	r, err := a.Reserve(fastCharge, "v1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if r.Status != model.StallReserved {
		t.Fatalf("status = %s", r.Status)
	}

	// Another vehicle cannot take the reserved stall.
	if _, err := a.ClaimStall(r.ID, "v2", now, time.Hour); !errors.Is(err, ErrConflict) {
		t.Fatalf("reserved stall must refuse other vehicles, got %v", err)
	}
	// The holder can.
	s, err := a.ClaimStall(r.ID, "v1", now, time.Hour)
	if err != nil {
		t.Fatalf("holder claim: %v", err)
	}
	if s.Status != model.StallOccupied {
		t.Fatalf("status = %s", s.Status)
	}
}

func TestOccupancyInvariant(t *testing.T) {
	a, _ := New(testInventory())
	now := time.Now()
	_, _ = a.Claim(fastCharge, "v1", now, time.Hour)
	_, _ = a.Reserve(detailClean, "v2", now.Add(time.Hour))

	for _, s := range a.Snapshot() {
		occupiedOrReserved := s.Status == model.StallOccupied || s.Status == model.StallReserved
		if occupiedOrReserved && s.CurrentVehicle == "" {
			t.Fatalf("stall %s %s without a vehicle", s.ID, s.Status)
		}
		if !occupiedOrReserved && s.CurrentVehicle != "" {
			t.Fatalf("stall %s %s still names vehicle %s", s.ID, s.Status, s.CurrentVehicle)
		}
	}
}

func TestMaintenanceDisplacesVehicle(t *testing.T) {
	a, _ := New(testInventory())
	now := time.Now()
	s, _ := a.Claim(serviceBay, "v1", now, time.Hour)

	displaced, err := a.SetMaintenance(s.ID, true)
	if err != nil {
		t.Fatalf("set maintenance: %v", err)
	}
	if displaced != "v1" {
		t.Fatalf("displaced = %q, want v1", displaced)
	}

	// Maintenance stalls are unclaimable and refuse release.
	if _, err := a.ClaimStall(s.ID, "v2", now, time.Hour); !errors.Is(err, ErrConflict) {
		t.Fatalf("maintenance stall claimed: %v", err)
	}
	if err := a.Release(s.ID); err == nil {
		t.Fatal("release of a maintenance stall must fail")
	}

	if _, err := a.SetMaintenance(s.ID, false); err != nil {
		t.Fatalf("end maintenance: %v", err)
	}
	if a.CountFree(model.StallServiceBay) != 1 {
		t.Error("stall should be available after maintenance ends")
	}
}

func TestReleaseVehicle(t *testing.T) {
	a, _ := New(testInventory())
	now := time.Now()
	_, _ = a.Claim(fastCharge, "v1", now, time.Hour)
	_, _ = a.Reserve(detailClean, "v1", now.Add(time.Hour))

	freed := a.ReleaseVehicle("v1")
	if len(freed) != 2 {
		t.Fatalf("freed %d stalls, want 2", len(freed))
	}
	for _, s := range a.Snapshot() {
		if s.CurrentVehicle == "v1" {
			t.Fatalf("stall %s still held by v1", s.ID)
		}
	}
}

func TestFreeBy(t *testing.T) {
	a, _ := New(testInventory())
	now := time.Now()
	_, _ = a.Claim(fastCharge, "v1", now, 30*time.Minute)
	_, _ = a.Claim(fastCharge, "v2", now, 4*time.Hour)

	if got := a.FreeBy(model.StallFastCharge, now.Add(time.Hour)); got != 1 {
		t.Fatalf("FreeBy(+1h) = %d, want 1 (v1 finishes in 30m)", got)
	}
	if got := a.FreeBy(model.StallFastCharge, now.Add(5*time.Hour)); got != 2 {
		t.Fatalf("FreeBy(+5h) = %d, want 2", got)
	}
}

func TestClaimFallsBackToStandardCharge(t *testing.T) {
	inv := []model.DepotStall{
		{ID: "sc-1", DepotID: "depot-1", Number: 1, Type: model.StallStandardCharge, Status: model.StallAvailable, PowerKW: 50},
	}
	a, _ := New(inv)

	s, err := a.Claim(model.ServiceCharge.StallsFor(), "v1", time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("charge step must run on a standard charge stall: %v", err)
	}
	if s.ID != "sc-1" || s.Status != model.StallOccupied {
		t.Fatalf("claimed = %+v", s)
	}
}

func TestClaimPrefersFastCharge(t *testing.T) {
	inv := []model.DepotStall{
		{ID: "sc-1", DepotID: "depot-1", Number: 1, Type: model.StallStandardCharge, Status: model.StallAvailable, PowerKW: 50},
		{ID: "fc-1", DepotID: "depot-1", Number: 2, Type: model.StallFastCharge, Status: model.StallAvailable, PowerKW: 150},
	}
	a, _ := New(inv)

	// The standard stall sorts first, but fast chargers come first in the
	// compatibility order.
	s, err := a.Claim(model.ServiceCharge.StallsFor(), "v1", time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if s.ID != "fc-1" {
		t.Fatalf("claimed %s, want the fast charger", s.ID)
	}
}

func TestClaimPrefersOwnReservation(t *testing.T) {
	a, _ := New(testInventory())
	now := time.Now()

	// v1's reservation lands on fc-2; fc-1 then frees up ahead of it.
	if _, err := a.Claim(fastCharge, "v0", now, time.Hour); err != nil {
		t.Fatal(err)
	}
	r, err := a.Reserve(fastCharge, "v1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := a.Release("fc-1"); err != nil {
		t.Fatal(err)
	}

	s, err := a.Claim(fastCharge, "v1", now, time.Hour)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if s.ID != r.ID {
		t.Fatalf("claimed %s, want the reserved stall %s", s.ID, r.ID)
	}
	for _, st := range a.Snapshot() {
		if st.Status == model.StallReserved {
			t.Fatalf("stall %s left reserved after the holder claimed", st.ID)
		}
	}
}

func TestExpireReservations(t *testing.T) {
	a, _ := New(testInventory())
	now := time.Now()
	if _, err := a.Reserve(fastCharge, "v1", now.Add(30*time.Minute)); err != nil {
		t.Fatal(err)
	}

	if freed := a.ExpireReservations(now.Add(29 * time.Minute)); len(freed) != 0 {
		t.Fatalf("hold released early: %v", freed)
	}
	freed := a.ExpireReservations(now.Add(31 * time.Minute))
	if len(freed) != 1 || freed[0] != "fc-1" {
		t.Fatalf("freed = %v, want [fc-1]", freed)
	}
	if a.CountFree(model.StallFastCharge) != 2 {
		t.Fatal("lapsed reservation not returned to the pool")
	}
}

func TestUnknownStall(t *testing.T) {
	a, _ := New(testInventory())
	if _, err := a.ClaimStall("nope", "v1", time.Now(), time.Hour); !errors.Is(err, ErrUnknownStall) {
		t.Fatalf("got %v", err)
	}
	if err := a.Release("nope"); !errors.Is(err, ErrUnknownStall) {
		t.Fatalf("got %v", err)
	}
}

func TestDuplicateStallRejected(t *testing.T) {
	inv := testInventory()
	inv = append(inv, inv[0])
	if _, err := New(inv); err == nil {
		t.Fatal("duplicate stall id must be rejected")
	}
}

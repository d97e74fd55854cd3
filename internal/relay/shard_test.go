package relay

import (
	"fmt"
	"net/http"
	"testing"
)

func TestShardIndexDeterministic(t *testing.T) {
	rooms := []string{
		"_/global/maps.example.com/office.json",
		"@/acme/hq/lobby",
		"@/acme/hq/floor/2",
	}
	for _, room := range rooms {
		first := ShardIndex(room, 7)
		for range 10 {
			if got := ShardIndex(room, 7); got != first {
				t.Fatalf("ShardIndex(%q, 7) = %d, then %d", room, first, got)
			}
		}
	}
}

func TestShardIndexRange(t *testing.T) {
	counts := make([]int, 4)
	for i := range 400 {
		idx := ShardIndex(fmt.Sprintf("@/org/world/room-%d", i), len(counts))
		if idx < 0 || idx >= len(counts) {
			t.Fatalf("ShardIndex() = %d, out of range", idx)
		}
		counts[idx]++
	}
	for i, n := range counts {
		if n == 0 {
			t.Errorf("shard %d received no rooms", i)
		}
	}
}

func TestShardIndexSingleShard(t *testing.T) {
	if got := ShardIndex("anything", 1); got != 0 {
		t.Errorf("ShardIndex(_, 1) = %d, want 0", got)
	}
}

func TestClientRepositoryCachesPerShard(t *testing.T) {
	endpoints := []string{"http://back-0:50051", "http://back-1:50051"}
	repo := NewClientRepository(endpoints, CompressionIdentity, http.DefaultClient, nil)

	if got := repo.Connected(); got != 0 {
		t.Fatalf("Connected() = %d before any lookup, want 0", got)
	}

	room := "@/acme/hq/lobby"
	a := repo.ClientFor(room)
	b := repo.ClientFor(room)
	if a != b {
		t.Error("ClientFor() returned different clients for the same room")
	}
	if want := endpoints[ShardIndex(room, 2)]; a.BaseURL() != want {
		t.Errorf("BaseURL() = %q, want %q", a.BaseURL(), want)
	}
	if got := repo.Connected(); got != 1 {
		t.Errorf("Connected() = %d, want 1", got)
	}
}

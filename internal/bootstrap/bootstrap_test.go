package bootstrap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ron808/eagrouter/internal/lifecycle"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadCSVSeed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample_data.csv", "id,x,y,delivery_point,RAMEN,CURRY,PIZZA,SUSHI\n"+
		"1,0,0,FALSE,TRUE,FALSE,FALSE,FALSE\n"+
		"2,1,0,TRUE,FALSE,FALSE,FALSE,FALSE\n")
	writeFile(t, dir, "blocked_paths.csv", "from_id,to_id\n1,2\n")

	seed, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(seed.Nodes) != 2 {
		t.Fatalf("nodes = %v, want 2", seed.Nodes)
	}
	if !seed.Nodes[1].IsDeliveryPoint {
		t.Fatalf("node 2 should be a delivery point: %+v", seed.Nodes[1])
	}
	if len(seed.Restaurants) != 1 || seed.Restaurants[0].Name != "RAMEN" {
		t.Fatalf("restaurants = %v, want one RAMEN restaurant", seed.Restaurants)
	}
	if len(seed.Blocked) != 1 || seed.Blocked[0].FromNodeID != 1 || seed.Blocked[0].ToNodeID != 2 {
		t.Fatalf("blocked = %v, want one edge 1->2", seed.Blocked)
	}
}

func TestLoadMissingBlockedPathsIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample_data.csv", "id,x,y,delivery_point\n1,0,0,FALSE\n")

	seed, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(seed.Blocked) != 0 {
		t.Fatalf("blocked = %v, want none", seed.Blocked)
	}
}

func TestLoadNoDataReturnsErrNoData(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); !errors.Is(err, ErrNoData) {
		t.Fatalf("Load with neither seed format present = %v, want ErrNoData", err)
	}
}

func TestLoadJSONCFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "grid.jsonc", `{
		// a two-node grid with one restaurant
		"nodes": [
			{"id": 1, "x": 0, "y": 0, "restaurant": "SUSHI"},
			{"id": 2, "x": 1, "y": 0, "deliveryPoint": true}
		],
		"blocked": [{"a": 1, "b": 2}]
	}`)

	seed, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(seed.Nodes) != 2 || len(seed.Restaurants) != 1 || len(seed.Blocked) != 1 {
		t.Fatalf("seed = %+v, want 2 nodes, 1 restaurant, 1 blocked edge", seed)
	}
}

func TestBots(t *testing.T) {
	bots := Bots(3, 5, 42)
	if len(bots) != 3 {
		t.Fatalf("Bots returned %d bots, want 3", len(bots))
	}
	for i, b := range bots {
		if b.ID != i+1 {
			t.Errorf("bot %d id = %d, want %d", i, b.ID, i+1)
		}
		if b.Status != lifecycle.BotIdle || b.CurrentNodeID != 42 || b.MaxCapacity != 5 {
			t.Errorf("bot %d = %+v, want IDLE at node 42 with capacity 5", i, b)
		}
	}
}

// Package bootstrap loads the immutable grid/restaurant/bot seed data on
// first run (spec §1's "CSV bootstrap loader" external collaborator),
// ported from original_source's data_loader.py: a sample_data.csv of nodes
// (with per-cuisine restaurant flag columns) and a blocked_paths.csv of
// blocked edges.
package bootstrap

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/df-mc/jsonc"

	"github.com/ron808/eagrouter/internal/grid"
	"github.com/ron808/eagrouter/internal/lifecycle"
	"github.com/ron808/eagrouter/internal/store"
)

// ErrNoData is returned when the configured data directory has neither a
// CSV nor a jsonc seed available.
var ErrNoData = errors.New("bootstrap: no seed data found")

// restaurantColumns are the cuisine columns data_loader.py checks, in the
// order it checks them.
var restaurantColumns = []string{"RAMEN", "CURRY", "PIZZA", "SUSHI"}

// Seed is the parsed, store-ready bootstrap payload.
type Seed struct {
	Nodes       []grid.Node
	Blocked     []grid.BlockedEdge
	Restaurants []store.Restaurant
}

// Load reads sample_data.csv and blocked_paths.csv from dir. If
// sample_data.csv is absent but grid.jsonc is present, the jsonc form is
// used instead (a hand-annotated alternative format for fixtures).
func Load(dir string) (Seed, error) {
	csvPath := filepath.Join(dir, "sample_data.csv")
	if _, err := os.Stat(csvPath); err == nil {
		return loadCSV(dir)
	}
	jsoncPath := filepath.Join(dir, "grid.jsonc")
	if _, err := os.Stat(jsoncPath); err == nil {
		return loadJSONC(jsoncPath)
	}
	return Seed{}, fmt.Errorf("%w: looked for %s and %s", ErrNoData, csvPath, jsoncPath)
}

func loadCSV(dir string) (Seed, error) {
	nodes, restaurants, err := loadNodesAndRestaurants(filepath.Join(dir, "sample_data.csv"))
	if err != nil {
		return Seed{}, err
	}
	blocked, err := loadBlockedEdges(filepath.Join(dir, "blocked_paths.csv"))
	if err != nil {
		return Seed{}, err
	}
	return Seed{Nodes: nodes, Blocked: blocked, Restaurants: restaurants}, nil
}

func loadNodesAndRestaurants(path string) ([]grid.Node, []store.Restaurant, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "﻿"))] = i
	}

	var nodes []grid.Node
	var restaurants []store.Restaurant
	restaurantID := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: read row: %w", err)
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[col["id"]]))
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: parse id: %w", err)
		}
		x, err := strconv.Atoi(strings.TrimSpace(rec[col["x"]]))
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: parse x: %w", err)
		}
		y, err := strconv.Atoi(strings.TrimSpace(rec[col["y"]]))
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: parse y: %w", err)
		}
		delivery := strings.EqualFold(strings.TrimSpace(rec[col["delivery_point"]]), "TRUE")
		nodes = append(nodes, grid.Node{ID: id, X: x, Y: y, IsDeliveryPoint: delivery})

		for _, name := range restaurantColumns {
			idx, ok := col[name]
			if !ok || idx >= len(rec) {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(rec[idx]), "TRUE") {
				restaurants = append(restaurants, store.Restaurant{ID: restaurantID, Name: name, NodeID: id})
				restaurantID++
			}
		}
	}
	return nodes, restaurants, nil
}

func loadBlockedEdges(path string) ([]grid.BlockedEdge, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("bootstrap: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("bootstrap: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "﻿"))] = i
	}

	var blocked []grid.BlockedEdge
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bootstrap: read row: %w", err)
		}
		from, err := strconv.Atoi(strings.TrimSpace(rec[col["from_id"]]))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: parse from_id: %w", err)
		}
		to, err := strconv.Atoi(strings.TrimSpace(rec[col["to_id"]]))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: parse to_id: %w", err)
		}
		blocked = append(blocked, grid.BlockedEdge{FromNodeID: from, ToNodeID: to})
	}
	return blocked, nil
}

// jsoncSeed mirrors Seed's shape for hand-annotated fixture files.
type jsoncSeed struct {
	Nodes []struct {
		ID            int    `json:"id"`
		X             int    `json:"x"`
		Y             int    `json:"y"`
		DeliveryPoint bool   `json:"deliveryPoint"`
		Restaurant    string `json:"restaurant"`
	} `json:"nodes"`
	Blocked []struct {
		A int `json:"a"`
		B int `json:"b"`
	} `json:"blocked"`
}

func loadJSONC(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("bootstrap: read %s: %w", path, err)
	}
	stripped := jsonc.ToJSON(raw)

	var js jsoncSeed
	if err := json.Unmarshal(stripped, &js); err != nil {
		return Seed{}, fmt.Errorf("bootstrap: decode %s: %w", path, err)
	}

	seed := Seed{}
	restaurantID := 1
	for _, n := range js.Nodes {
		seed.Nodes = append(seed.Nodes, grid.Node{ID: n.ID, X: n.X, Y: n.Y, IsDeliveryPoint: n.DeliveryPoint})
		if n.Restaurant != "" {
			seed.Restaurants = append(seed.Restaurants, store.Restaurant{ID: restaurantID, Name: n.Restaurant, NodeID: n.ID})
			restaurantID++
		}
	}
	for _, b := range js.Blocked {
		seed.Blocked = append(seed.Blocked, grid.BlockedEdge{FromNodeID: b.A, ToNodeID: b.B})
	}
	return seed, nil
}

// Bots returns the fixed fleet of count bots, every one IDLE at
// stationNodeID with the given capacity (spec §6.3's default fleet of 5,
// create_bots in data_loader.py).
func Bots(count int, capacity int, stationNodeID int) []store.Bot {
	bots := make([]store.Bot, 0, count)
	for i := 1; i <= count; i++ {
		bots = append(bots, store.Bot{
			ID:            i,
			Name:          fmt.Sprintf("Bot-%d", i),
			CurrentNodeID: stationNodeID,
			Status:        lifecycle.BotIdle,
			MaxCapacity:   capacity,
		})
	}
	return bots
}

// Package store implements the transactional entity store the engine
// consumes (spec §6.1): single-writer, serialised transactions over orders,
// bots, restaurants and the append-only order status history, with an
// optional durable LevelDB backing (grounded on the teacher's
// github.com/df-mc/dragonfly/server/world.World, which queues transactions
// on a channel served by one goroutine — see World.Exec/handleTransactions).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"

	"github.com/df-mc/goleveldb/leveldb"
)

// ErrStoreFailure wraps any underlying persistence error surfaced to callers
// (spec §7's StoreFailure kind).
var ErrStoreFailure = errors.New("store: failure")

// transaction is queued on Store.queue and run serially by the single writer
// goroutine, exactly as World.transaction is in the teacher.
type transaction struct {
	done    chan error
	f       ExecFunc
	persist bool
}

// ExecFunc performs a synchronised read/write transaction on the Store. An
// error returned from f aborts the transaction: every mutation made through
// tx during the call is rolled back and nothing is persisted.
type ExecFunc func(tx *Tx) error

// Store holds all persistent entities in memory, guarded by a single writer
// goroutine, with every committed transaction flushed to an optional LevelDB
// database for durability across restarts (engine-local working state such
// as bot routes is explicitly NOT part of this store — see spec §9).
type Store struct {
	log *slog.Logger
	db  *leveldb.DB // nil: in-memory only, no durability

	queue   chan transaction
	closing chan struct{}
	closed  chan struct{}

	restaurants map[int]Restaurant
	bots        map[int]Bot
	orders      map[int]Order
	history     []OrderStatusHistory

	nextOrderID   int
	nextHistoryID int
}

// Config configures a new Store.
type Config struct {
	Log *slog.Logger
	// DBPath, if non-empty, opens a LevelDB database at the path for durable
	// persistence of every committed transaction. Left empty, the Store is
	// in-memory only.
	DBPath string
}

// Open creates a Store, optionally backed by a LevelDB database, and starts
// its single writer goroutine.
func (c Config) Open() (*Store, error) {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	var db *leveldb.DB
	if c.DBPath != "" {
		var err error
		db, err = leveldb.OpenFile(c.DBPath, nil)
		if err != nil {
			return nil, fmt.Errorf("store: open leveldb: %w", err)
		}
	}
	s := &Store{
		log:         c.Log,
		db:          db,
		queue:       make(chan transaction, 64),
		closing:     make(chan struct{}),
		closed:      make(chan struct{}),
		restaurants: make(map[int]Restaurant),
		bots:        make(map[int]Bot),
		orders:      make(map[int]Order),
		nextOrderID: 1,
	}
	if db != nil {
		if err := s.loadFromDisk(); err != nil {
			return nil, fmt.Errorf("store: load: %w", err)
		}
	}
	go s.run()
	return s, nil
}

// Close stops the writer goroutine and closes the underlying database, if
// any.
func (s *Store) Close() error {
	close(s.closing)
	<-s.closed
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) run() {
	defer close(s.closed)
	for {
		select {
		case tx := <-s.queue:
			tx.done <- s.execute(tx.f, tx.persist)
		case <-s.closing:
			return
		}
	}
}

// Exec queues f to run as the single writer transaction and blocks until it
// completes, returning any error f returned (or a wrapped ErrStoreFailure if
// persistence failed after f succeeded).
func (s *Store) Exec(f ExecFunc) error {
	done := make(chan error, 1)
	s.queue <- transaction{done: done, f: f, persist: true}
	return <-done
}

// execute runs f against a snapshot of the current state. On success the
// snapshot becomes the new state and, when persist is true, is flushed to
// disk; on error (or when persist is false, as for read-only views) the
// snapshot's mutations are discarded and the prior state is left untouched —
// this is the rollback boundary spec §4.9/§5 requires ("a store transaction
// failure within a tick aborts the tick with its partial effects rolled
// back").
func (s *Store) execute(f ExecFunc, persist bool) (err error) {
	tx := &Tx{
		s:           s,
		orders:      maps.Clone(s.orders),
		bots:        maps.Clone(s.bots),
		history:     append([]OrderStatusHistory(nil), s.history...),
		nextOrderID: s.nextOrderID,
	}
	tx.nextHistoryID = s.nextHistoryID

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrStoreFailure, r)
		}
	}()

	if err = f(tx); err != nil {
		return err
	}
	if !persist {
		return nil
	}
	if s.db != nil {
		if err = s.persist(tx); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
	}
	s.orders = tx.orders
	s.bots = tx.bots
	s.history = tx.history
	s.nextOrderID = tx.nextOrderID
	s.nextHistoryID = tx.nextHistoryID
	return nil
}

// ---- LevelDB persistence ----

const (
	keyPrefixOrder   = "order:"
	keyPrefixBot     = "bot:"
	keyPrefixHistory = "history:"
	keyMeta          = "meta"
)

type metaRecord struct {
	NextOrderID   int
	NextHistoryID int
}

func (s *Store) persist(tx *Tx) error {
	batch := new(leveldb.Batch)
	for id, o := range tx.orders {
		b, err := json.Marshal(o)
		if err != nil {
			return err
		}
		batch.Put([]byte(fmt.Sprintf("%s%d", keyPrefixOrder, id)), b)
	}
	for id, bot := range tx.bots {
		b, err := json.Marshal(bot)
		if err != nil {
			return err
		}
		batch.Put([]byte(fmt.Sprintf("%s%d", keyPrefixBot, id)), b)
	}
	for i, h := range tx.history[len(s.history):] {
		b, err := json.Marshal(h)
		if err != nil {
			return err
		}
		batch.Put([]byte(fmt.Sprintf("%s%d", keyPrefixHistory, len(s.history)+i)), b)
	}
	meta, err := json.Marshal(metaRecord{NextOrderID: tx.nextOrderID, NextHistoryID: tx.nextHistoryID})
	if err != nil {
		return err
	}
	batch.Put([]byte(keyMeta), meta)
	return s.db.Write(batch, nil)
}

func (s *Store) loadFromDisk() error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		key := string(iter.Key())
		val := append([]byte(nil), iter.Value()...)
		switch {
		case key == keyMeta:
			var m metaRecord
			if err := json.Unmarshal(val, &m); err != nil {
				return err
			}
			s.nextOrderID, s.nextHistoryID = m.NextOrderID, m.NextHistoryID
		case len(key) > len(keyPrefixOrder) && key[:len(keyPrefixOrder)] == keyPrefixOrder:
			var o Order
			if err := json.Unmarshal(val, &o); err != nil {
				return err
			}
			s.orders[o.ID] = o
		case len(key) > len(keyPrefixBot) && key[:len(keyPrefixBot)] == keyPrefixBot:
			var b Bot
			if err := json.Unmarshal(val, &b); err != nil {
				return err
			}
			s.bots[b.ID] = b
		case len(key) > len(keyPrefixHistory) && key[:len(keyPrefixHistory)] == keyPrefixHistory:
			var h OrderStatusHistory
			if err := json.Unmarshal(val, &h); err != nil {
				return err
			}
			s.history = append(s.history, h)
		}
	}
	// Keys iterate in byte order ("history:10" before "history:2"), so
	// restore append order from the monotonically assigned ids.
	sort.Slice(s.history, func(i, j int) bool { return s.history[i].ID < s.history[j].ID })
	if s.nextOrderID == 0 {
		s.nextOrderID = 1
	}
	return iter.Error()
}

// SeedRestaurants installs the immutable restaurant set loaded at bootstrap.
// Restaurants never change after load, so this bypasses the transaction
// queue and must only be called before Open's writer goroutine sees
// concurrent traffic (i.e. during bootstrap).
func (s *Store) SeedRestaurants(restaurants []Restaurant) {
	for _, r := range restaurants {
		s.restaurants[r.ID] = r
	}
}

// SeedBots installs the initial bot fleet at bootstrap, same caveat as
// SeedRestaurants.
func (s *Store) SeedBots(bots []Bot) {
	for _, b := range bots {
		s.bots[b.ID] = b
	}
}

// Restaurant returns the immutable restaurant record for id.
func (s *Store) Restaurant(id int) (Restaurant, bool) {
	r, ok := s.restaurants[id]
	return r, ok
}

// Restaurants returns every restaurant, unordered.
func (s *Store) Restaurants() []Restaurant {
	out := make([]Restaurant, 0, len(s.restaurants))
	for _, r := range s.restaurants {
		out = append(out, r)
	}
	return out
}

// View runs f against a consistent snapshot of the store, serialised with
// respect to ticks and writes through the same writer queue but without
// persisting any mutation f might (incorrectly) attempt — used by
// observation endpoints (spec §5: "Reads issued by the observation
// endpoints ... do not block ticks beyond standard store concurrency").
func (s *Store) View(f func(tx *Tx)) {
	done := make(chan error, 1)
	s.queue <- transaction{done: done, persist: false, f: func(tx *Tx) error {
		f(tx)
		return nil
	}}
	<-done
}

// ViewResult is like View but lets the callback return a value.
func ViewResult[R any](s *Store, f func(tx *Tx) R) R {
	var result R
	s.View(func(tx *Tx) {
		result = f(tx)
	})
	return result
}

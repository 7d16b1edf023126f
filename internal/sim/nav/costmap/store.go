package costmap

import "dunenet.ai/internal/sim/nav/grid"

// Store owns the active costmap. All access happens on the world goroutine;
// the version counter gives each published costmap value an identity so a
// replan triggered by one version can be discarded if another lands first.
type Store struct {
	current *grid.Costmap
	version uint64
}

func NewStore(cm *grid.Costmap) *Store {
	return &Store{current: cm, version: 1}
}

// Current returns the active costmap. The returned value is read-only.
func (s *Store) Current() *grid.Costmap { return s.current }

// Version identifies the active costmap value. It increases on every
// Replace and never repeats within a process.
func (s *Store) Version() uint64 { return s.version }

// Replace publishes a new costmap value. The previous value is dropped;
// readers holding it keep a consistent (stale) view.
func (s *Store) Replace(cm *grid.Costmap) {
	s.current = cm
	s.version++
}

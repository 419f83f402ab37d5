// Package memstore is a RecordStore kept in process memory. Data does not survive a restart.
package memstore

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/storage/hub"
)

type Store struct {
	mu    sync.RWMutex
	slots map[string]core.Slot
	hub   *hub.Hub
}

var _ core.RecordStore = (*Store)(nil)

func New() *Store {
	return &Store{
		slots: make(map[string]core.Slot),
		hub:   hub.New(),
	}
}

func (s *Store) Get(ctx context.Context, name string) (core.Slot, error) {
	if err := ctx.Err(); err != nil {
		return core.Slot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[name]
	if !ok {
		return core.Slot{}, core.ErrSlotNotFound
	}
	slot.Value = append([]byte(nil), slot.Value...)
	return slot, nil
}

func (s *Store) Commit(ctx context.Context, writes ...core.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	changes, err := s.apply(writes)
	if err != nil {
		return err
	}
	s.hub.Publish(changes...)
	return nil
}

func (s *Store) apply(writes []core.Write) ([]core.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// check every precondition before touching anything
	for _, w := range writes {
		if w.Version == core.AnyVersion {
			continue
		}
		if current := s.slots[w.Name].Version; current != w.Version {
			return nil, errors.Wrapf(core.ErrConflict, "slot %q is at version %d, expected %d", w.Name, current, w.Version)
		}
	}

	changes := make([]core.Change, 0, len(writes))
	for _, w := range writes {
		if w.Value == nil {
			if _, ok := s.slots[w.Name]; !ok {
				continue
			}
			delete(s.slots, w.Name)
			changes = append(changes, core.Change{Name: w.Name})
			continue
		}
		version := s.slots[w.Name].Version + 1
		s.slots[w.Name] = core.Slot{
			Name:    w.Name,
			Value:   append([]byte(nil), w.Value...),
			Version: version,
		}
		changes = append(changes, core.Change{Name: w.Name, Version: version})
	}
	return changes, nil
}

func (s *Store) Subscribe(ctx context.Context) (<-chan core.Change, error) {
	return s.hub.Subscribe(ctx)
}

func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

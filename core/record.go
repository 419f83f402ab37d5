package core

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// AnyVersion makes a Write unconditional: the last writer wins.
const AnyVersion int64 = -1

type (
	// Slot is a named durable value. Version starts at 1 and is bumped on every write.
	Slot struct {
		Name    string
		Value   []byte
		Version int64
	}

	// Write replaces (or deletes, when Value is nil) a slot.
	// Version is the version the slot is expected to have: 0 if it must not exist yet, AnyVersion to skip the check.
	Write struct {
		Name    string
		Value   []byte
		Version int64
	}

	// Change is published whenever a slot is written. Version is 0 when the slot was deleted.
	Change struct {
		Name    string `json:"name"`
		Version int64  `json:"version"`
	}

	// RecordStore persists named slots. Implementations must be safe for concurrent use.
	RecordStore interface {
		// Get returns ErrSlotNotFound if there is no slot with this name.
		Get(ctx context.Context, name string) (Slot, error)
		// Commit applies all writes or none of them. It returns ErrConflict when a version check fails.
		Commit(ctx context.Context, writes ...Write) error
		// Subscribe streams changes until ctx is done.
		Subscribe(ctx context.Context) (<-chan Change, error)
		Close() error
	}
)

// Batch is a unit of work over several slots: every slot read through it is written back
// with the version it was read at, so a concurrent modification makes the whole batch fail.
type Batch struct {
	ctx    context.Context
	store  RecordStore
	seen   map[string]int64
	staged map[string]Write
	order  []string
}

// RunBatch runs fn and commits the writes it staged. Nothing is written if fn fails.
func RunBatch(ctx context.Context, store RecordStore, fn func(b *Batch) error) error {
	b := &Batch{
		ctx:    ctx,
		store:  store,
		seen:   make(map[string]int64),
		staged: make(map[string]Write),
	}
	if err := fn(b); err != nil {
		return err
	}
	if len(b.order) == 0 {
		return nil
	}
	writes := make([]Write, 0, len(b.order))
	for _, name := range b.order {
		writes = append(writes, b.staged[name])
	}
	return store.Commit(ctx, writes...)
}

// Context returns the context the batch runs with.
func (b *Batch) Context() context.Context { return b.ctx }

// Get decodes the slot `name` into dst. It returns false if the slot does not exist (or was deleted in this batch).
func (b *Batch) Get(name string, dst interface{}) (bool, error) {
	if w, ok := b.staged[name]; ok {
		if w.Value == nil {
			return false, nil
		}
		return true, decode(name, w.Value, dst)
	}

	slot, err := b.store.Get(b.ctx, name)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			b.seen[name] = 0
			return false, nil
		}
		return false, errors.Wrapf(err, "reading slot %q", name)
	}
	b.seen[name] = slot.Version
	return true, decode(name, slot.Value, dst)
}

// Put stages v to be written to the slot `name`.
func (b *Batch) Put(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding slot %q", name)
	}
	b.stage(name, data)
	return nil
}

// Delete stages the removal of the slot `name`.
func (b *Batch) Delete(name string) {
	b.stage(name, nil)
}

func (b *Batch) stage(name string, value []byte) {
	version, ok := b.seen[name]
	if !ok {
		version = AnyVersion
	}
	if _, ok := b.staged[name]; !ok {
		b.order = append(b.order, name)
	}
	b.staged[name] = Write{Name: name, Value: value, Version: version}
}

func decode(name string, data []byte, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrapf(ErrStorageCorrupt, "decoding slot %q: %v", name, err)
	}
	return nil
}

// Collection is a typed view over a slot holding a list of T.
type Collection[T any] struct {
	store RecordStore
	name  string
}

func NewCollection[T any](store RecordStore, name string) Collection[T] {
	return Collection[T]{store: store, name: name}
}

func (c Collection[T]) Name() string { return c.name }

// Load returns the persisted list. A missing slot is an empty list;
// an undecodable one is an empty list along with an ErrStorageCorrupt error.
func (c Collection[T]) Load(ctx context.Context) ([]T, error) {
	items := make([]T, 0)
	slot, err := c.store.Get(ctx, c.name)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return items, nil
		}
		return items, errors.Wrapf(err, "reading slot %q", c.name)
	}
	if err := decode(c.name, slot.Value, &items); err != nil {
		return make([]T, 0), err
	}
	if items == nil { // stored as JSON null
		items = make([]T, 0)
	}
	return items, nil
}

// Save overwrites the whole list, whatever was stored before.
func (c Collection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = make([]T, 0)
	}
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrapf(err, "encoding slot %q", c.name)
	}
	return c.store.Commit(ctx, Write{Name: c.name, Value: data, Version: AnyVersion})
}

// Read loads the list within a batch. Unlike Load, a corrupt slot is an error:
// a batch must never overwrite data it could not read.
func (c Collection[T]) Read(b *Batch) ([]T, error) {
	items := make([]T, 0)
	if _, err := b.Get(c.name, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = make([]T, 0)
	}
	return items, nil
}

// Stage writes the list back within a batch.
func (c Collection[T]) Stage(b *Batch, items []T) error {
	if items == nil {
		items = make([]T, 0)
	}
	return b.Put(c.name, items)
}

// Update is a read-modify-write of the whole list in its own batch.
func (c Collection[T]) Update(ctx context.Context, fn func(items []T) ([]T, error)) ([]T, error) {
	var result []T
	err := RunBatch(ctx, c.store, func(b *Batch) error {
		items, err := c.Read(b)
		if err != nil {
			return err
		}
		if result, err = fn(items); err != nil {
			return err
		}
		return c.Stage(b, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Document is a typed view over a slot holding a single T.
type Document[T any] struct {
	store RecordStore
	name  string
}

func NewDocument[T any](store RecordStore, name string) Document[T] {
	return Document[T]{store: store, name: name}
}

func (d Document[T]) Name() string { return d.name }

// Load returns the stored document and whether it exists.
func (d Document[T]) Load(ctx context.Context) (T, bool, error) {
	var doc T
	slot, err := d.store.Get(ctx, d.name)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return doc, false, nil
		}
		return doc, false, errors.Wrapf(err, "reading slot %q", d.name)
	}
	if err := decode(d.name, slot.Value, &doc); err != nil {
		var zero T
		return zero, false, err
	}
	return doc, true, nil
}

// Save overwrites the document.
func (d Document[T]) Save(ctx context.Context, doc T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrapf(err, "encoding slot %q", d.name)
	}
	return d.store.Commit(ctx, Write{Name: d.name, Value: data, Version: AnyVersion})
}

// Delete removes the document. Deleting a missing document is a no-op.
func (d Document[T]) Delete(ctx context.Context) error {
	return d.store.Commit(ctx, Write{Name: d.name, Version: AnyVersion})
}

func (d Document[T]) Read(b *Batch) (T, bool, error) {
	var doc T
	found, err := b.Get(d.name, &doc)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return doc, found, nil
}

func (d Document[T]) Stage(b *Batch, doc T) error {
	return b.Put(d.name, doc)
}

func (d Document[T]) StageDelete(b *Batch) {
	b.Delete(d.name)
}

// FailOpen turns an ErrStorageCorrupt read into an empty result, logging it.
// Any other error is returned as is.
func FailOpen[T any](items []T, err error, logger Logger, msg string) ([]T, error) {
	if err == nil {
		return items, nil
	}
	if errors.Is(err, ErrStorageCorrupt) {
		if logger != nil {
			logger.Error(msg+": treating corrupt slot as empty", err)
		}
		return make([]T, 0), nil
	}
	return nil, err
}

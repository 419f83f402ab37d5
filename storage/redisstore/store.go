// Package redisstore is a RecordStore backed by Redis. Every slot is a hash holding its value and version;
// changes are broadcast to every process sharing the server through PUBLISH/SUBSCRIBE.
package redisstore

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/royalacademy/backoffice/core"
)

// maxRetries bounds how many times a commit is replayed when a watched key changed under it.
const maxRetries = 10

const (
	fieldValue   = "value"
	fieldVersion = "version"
)

type (
	Options struct {
		Addr    string
		Prefix  string // key prefix
		Channel string // changes channel
	}

	Store struct {
		client  *redis.Client
		prefix  string
		channel string
		logger  core.Logger
	}
)

var _ core.RecordStore = (*Store)(nil)

// Open connects to the redis server at opts.Addr.
func Open(ctx context.Context, opts Options, logger core.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: opts.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", opts.Addr)
	}
	return New(client, opts, logger), nil
}

func New(client *redis.Client, opts Options, logger core.Logger) *Store {
	channel := opts.Channel
	if channel == "" {
		channel = opts.Prefix + "changes"
	}
	return &Store{
		client:  client,
		prefix:  opts.Prefix,
		channel: channel,
		logger:  logger,
	}
}

func (s *Store) key(name string) string {
	return s.prefix + "slot:" + name
}

func (s *Store) Get(ctx context.Context, name string) (core.Slot, error) {
	vals, err := s.client.HMGet(ctx, s.key(name), fieldValue, fieldVersion).Result()
	if err != nil {
		return core.Slot{}, errors.Wrapf(err, "reading slot %q", name)
	}
	value, ok := vals[0].(string)
	if !ok {
		return core.Slot{}, core.ErrSlotNotFound
	}
	version, err := parseVersion(vals[1])
	if err != nil {
		return core.Slot{}, errors.Wrapf(err, "reading slot %q", name)
	}
	return core.Slot{Name: name, Value: []byte(value), Version: version}, nil
}

func parseVersion(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, errors.New("missing version")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid version %q", s)
	}
	return n, nil
}

func (s *Store) Commit(ctx context.Context, writes ...core.Write) error {
	if len(writes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(writes))
	for _, w := range writes {
		keys = append(keys, s.key(w.Name))
	}

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error { return s.commit(ctx, tx, writes) }, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue // a watched key changed: replay, the version checks will tell if it matters
		}
		return err
	}
	return errors.Wrap(core.ErrConflict, "too much contention on slots")
}

func (s *Store) commit(ctx context.Context, tx *redis.Tx, writes []core.Write) error {
	versions := make(map[string]int64, len(writes))
	for _, w := range writes {
		if _, ok := versions[w.Name]; ok {
			continue
		}
		version, err := tx.HGet(ctx, s.key(w.Name), fieldVersion).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return errors.Wrapf(err, "reading version of slot %q", w.Name)
		}
		if w.Version != core.AnyVersion && version != w.Version {
			return errors.Wrapf(core.ErrConflict, "slot %q is at version %d, expected %d", w.Name, version, w.Version)
		}
		versions[w.Name] = version
	}

	changes := make([]core.Change, 0, len(writes))
	for _, w := range writes {
		if w.Value == nil {
			if versions[w.Name] != 0 {
				changes = append(changes, core.Change{Name: w.Name})
			}
			versions[w.Name] = 0
			continue
		}
		versions[w.Name]++
		changes = append(changes, core.Change{Name: w.Name, Version: versions[w.Name]})
	}

	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range writes {
			key := s.key(w.Name)
			if w.Value == nil {
				pipe.Del(ctx, key)
				continue
			}
			pipe.HSet(ctx, key, fieldValue, string(w.Value), fieldVersion, versions[w.Name])
		}
		for _, c := range changes {
			payload, _ := json.Marshal(c)
			pipe.Publish(ctx, s.channel, payload)
		}
		return nil
	})
	return err
}

// Subscribe streams the changes published by every process using the same redis server and channel.
func (s *Store) Subscribe(ctx context.Context) (<-chan core.Change, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil { // wait for the subscription to be confirmed
		_ = pubsub.Close()
		return nil, errors.Wrap(err, "subscribing to slot changes")
	}

	out := make(chan core.Change)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		msgs := pubsub.Channel()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c core.Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					s.logger.Error("redisstore: decoding change", err, map[string]interface{}{"payload": msg.Payload})
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

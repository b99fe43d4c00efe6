package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// DefaultKey names the blob the collection is stored under.
const DefaultKey = "calendar-events"

// Encode serializes the collection. Times are written as RFC 3339.
func Encode(events []model.Event) ([]byte, error) {
	if events == nil {
		events = []model.Event{}
	}
	return json.Marshal(events)
}

// Decode parses a blob written by Encode and moves every time into the
// local zone so day comparisons use wall-clock days.
func Decode(data []byte) ([]model.Event, error) {
	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	for i := range events {
		events[i] = localize(events[i])
	}
	return events, nil
}

func localize(ev model.Event) model.Event {
	ev.Date = ev.Date.In(time.Local)
	ev.StartTime = ev.StartTime.In(time.Local)
	ev.EndTime = ev.EndTime.In(time.Local)
	if ev.Recurrence != nil && ev.Recurrence.EndDate != nil {
		end := ev.Recurrence.EndDate.In(time.Local)
		ev.Recurrence.EndDate = &end
	}
	return ev
}

// FilePersister keeps the collection as one JSON file.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	if path == "" {
		path = "./data/" + DefaultKey + ".json"
	}
	return &FilePersister{path: path}
}

// Load returns an empty collection when the file does not exist yet.
func (f *FilePersister) Load(_ context.Context) ([]model.Event, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Info("store: no saved events, starting empty", "path", f.path)
			return []model.Event{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []model.Event{}, nil
	}
	return Decode(data)
}

// Save writes atomically via a temp file in the same directory plus rename.
func (f *FilePersister) Save(_ context.Context, events []model.Event) error {
	data, err := Encode(events)
	if err != nil {
		return err
	}
	return WriteFileAtomic(f.path, data)
}

// WriteFileAtomic replaces path with data, creating parent directories
// (0700) and leaving the file at 0600.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// RedisPersister keeps the collection as one string value under key.
type RedisPersister struct {
	client redis.UniversalClient
	key    string
}

func NewRedisPersister(client redis.UniversalClient, key string) *RedisPersister {
	if key == "" {
		key = DefaultKey
	}
	return &RedisPersister{client: client, key: key}
}

// Load returns an empty collection when the key is missing.
func (r *RedisPersister) Load(ctx context.Context) ([]model.Event, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			appLog.Info("store: no saved events in redis, starting empty", "key", r.key)
			return []model.Event{}, nil
		}
		return nil, err
	}
	return Decode(data)
}

func (r *RedisPersister) Save(ctx context.Context, events []model.Event) error {
	data, err := Encode(events)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, data, 0).Err()
}

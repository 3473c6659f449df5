package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lotas/tabspeicher/internal/applog"
	"github.com/lotas/tabspeicher/internal/types"
)

// Persisted keys. The whole record set lives under one key as a JSON
// array; view mode and storage location are independent keys.
const (
	keyTabData         = "tabData"
	keyViewMode        = "viewMode"
	keyStorageFilePath = "storageFilePath"
)

// ErrClosed is returned for operations issued after Close.
var ErrClosed = errors.New("record store closed")

// PersistenceError wraps a failed read or write of the record blob.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// mutateFunc transforms the in-memory record set. Returning an error
// aborts the write and leaves the persisted blob untouched.
type mutateFunc func(records []types.Record) ([]types.Record, error)

type request struct {
	op    string
	fn    mutateFunc
	reply chan error
}

// RecordStore owns the persisted record set. All mutations funnel
// through a single writer goroutine that applies read-modify-write
// cycles in arrival order, so two concurrent appends can never lose an
// update. Reads go straight to the database.
type RecordStore struct {
	db   *sql.DB
	reqs chan request
	quit chan struct{}
	done chan struct{}
}

// NewRecordStore starts the writer goroutine. Call Close to stop it.
func NewRecordStore(db *sql.DB) *RecordStore {
	s := &RecordStore{
		db:   db,
		reqs: make(chan request, 16),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.writer()
	return s
}

// Close stops the writer after draining queued mutations.
func (s *RecordStore) Close() {
	close(s.quit)
	<-s.done
}

func (s *RecordStore) writer() {
	defer close(s.done)
	for {
		select {
		case req := <-s.reqs:
			req.reply <- s.apply(req.op, req.fn)
		case <-s.quit:
			// Drain anything enqueued before Close.
			for {
				select {
				case req := <-s.reqs:
					req.reply <- s.apply(req.op, req.fn)
				default:
					return
				}
			}
		}
	}
}

func (s *RecordStore) apply(op string, fn mutateFunc) error {
	records, err := loadRecords(s.db)
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	records, err = fn(records)
	if err != nil {
		return err
	}
	data, err := json.Marshal(records)
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	if err := setKV(s.db, keyTabData, string(data)); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	applog.Info("store."+op, "total", len(records))
	return nil
}

func (s *RecordStore) do(ctx context.Context, op string, fn mutateFunc) error {
	select {
	case <-s.quit:
		return ErrClosed
	default:
	}
	req := request{op: op, fn: fn, reply: make(chan error, 1)}
	select {
	case s.reqs <- req:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		// Writer exited; it may still have drained this request.
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		// The mutation may still land; only the wait is abandoned.
		return ctx.Err()
	}
}

// Append adds one record to the end of the set.
func (s *RecordStore) Append(ctx context.Context, rec types.Record) error {
	return s.AppendMany(ctx, []types.Record{rec})
}

// AppendMany adds records in one read-modify-write cycle, so a batch
// capture cannot interleave with other writers.
func (s *RecordStore) AppendMany(ctx context.Context, recs []types.Record) error {
	if len(recs) == 0 {
		return nil
	}
	return s.do(ctx, "append", func(records []types.Record) ([]types.Record, error) {
		return append(records, recs...), nil
	})
}

// Remove filters out the record with the given id. Removing an absent
// id is a no-op, not an error.
func (s *RecordStore) Remove(ctx context.Context, id types.RecordID) error {
	return s.do(ctx, "remove", func(records []types.Record) ([]types.Record, error) {
		kept := records[:0]
		for _, r := range records {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		return kept, nil
	})
}

// ReplaceAll overwrites the whole set. Used by import.
func (s *RecordStore) ReplaceAll(ctx context.Context, recs []types.Record) error {
	return s.do(ctx, "replace", func([]types.Record) ([]types.Record, error) {
		return recs, nil
	})
}

// SetTitle updates one record's title in place. A missing id is a no-op.
func (s *RecordStore) SetTitle(ctx context.Context, id types.RecordID, title string) error {
	return s.do(ctx, "settitle", func(records []types.Record) ([]types.Record, error) {
		for i := range records {
			if records[i].ID == id {
				records[i].Title = title
			}
		}
		return records, nil
	})
}

// GetAll returns the current record set. The returned slice is the
// caller's to keep; it never aliases store state.
func (s *RecordStore) GetAll(ctx context.Context) ([]types.Record, error) {
	records, err := loadRecords(s.db)
	if err != nil {
		return nil, &PersistenceError{Op: "getall", Err: err}
	}
	return records, nil
}

func loadRecords(db *sql.DB) ([]types.Record, error) {
	value, ok, err := getKV(db, keyTabData)
	if err != nil {
		return nil, err
	}
	if !ok || value == "" {
		return nil, nil
	}
	var records []types.Record
	if err := json.Unmarshal([]byte(value), &records); err != nil {
		return nil, fmt.Errorf("decode record set: %w", err)
	}
	return records, nil
}

// ViewMode returns the persisted list preference, defaulting to date view.
func (s *RecordStore) ViewMode(ctx context.Context) (types.ViewMode, error) {
	value, _, err := getKV(s.db, keyViewMode)
	if err != nil {
		return types.ViewByDate, &PersistenceError{Op: "viewmode", Err: err}
	}
	return types.ParseViewMode(value), nil
}

// EnsureViewMode seeds the list preference when none has been
// persisted yet. A preference a user already picked wins over the
// configured default.
func (s *RecordStore) EnsureViewMode(ctx context.Context, mode types.ViewMode) error {
	_, ok, err := getKV(s.db, keyViewMode)
	if err != nil {
		return &PersistenceError{Op: "viewmode", Err: err}
	}
	if ok {
		return nil
	}
	return s.SetViewMode(ctx, mode)
}

// SetViewMode persists the list preference.
func (s *RecordStore) SetViewMode(ctx context.Context, mode types.ViewMode) error {
	if err := setKV(s.db, keyViewMode, string(mode)); err != nil {
		return &PersistenceError{Op: "viewmode", Err: err}
	}
	return nil
}

// Location returns the last export/import file name. Display-only; the
// record set itself is always the source of truth.
func (s *RecordStore) Location(ctx context.Context) (string, error) {
	value, _, err := getKV(s.db, keyStorageFilePath)
	if err != nil {
		return "", &PersistenceError{Op: "location", Err: err}
	}
	return value, nil
}

// SetLocation remembers the last export/import file name.
func (s *RecordStore) SetLocation(ctx context.Context, name string) error {
	if err := setKV(s.db, keyStorageFilePath, name); err != nil {
		return &PersistenceError{Op: "location", Err: err}
	}
	return nil
}

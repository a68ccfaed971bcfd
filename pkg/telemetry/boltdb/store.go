// Package boltdb provides a telemetry.Store that keeps Events in a bbolt file.
package boltdb

import (
	"context"
	"encoding/binary"
	"time"

	bolt "go.etcd.io/bbolt"

	"code.issuerext.org/golang/internal/transport"
	"code.issuerext.org/golang/internal/utils"
	"code.issuerext.org/golang/pkg/telemetry"
)

const connectTimeout = 5 * time.Second

var eventsName = []byte("events")

var cborSrz = transport.WrapInSafeSerializer(transport.CBORSerializer{})

// Store is a telemetry.Store backed by a bbolt database.
// Events are keyed by their UUIDv7 ID, bucket order is creation order.
type Store struct {
	db *bolt.DB
}

// New opens the bbolt database at dbpath, creating it if needed.
// The returned Store keeps the database open until Close is called.
func New(dbpath string) (*Store, error) {
	db, err := bolt.Open(dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return nil, wrapError(err, "failed connecting to database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsName)
		return err
	})
	if nil != err {
		db.Close()
		return nil, wrapError(err, "failed %s bucket creation", eventsName)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (self *Store) Close() error {
	return wrapError(self.db.Close(), "failed closing database")
}

// SaveEvent stores ev. It errors if ev is invalid.
func (self *Store) SaveEvent(ctx context.Context, ev telemetry.Event) error {
	err := ctx.Err()
	if nil != err {
		return wrapError(err, "can not save event")
	}
	srzev, err := cborSrz.Marshal(ev)
	if nil != err {
		return wrapError(err, "failed marshaling event")
	}

	err = self.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(eventsName)
		if nil == bucket {
			return newError("missing %s bucket", eventsName)
		}
		return bucket.Put(ev.ID[:], srzev)
	})

	return wrapError(err, "failed db.Update") // nil if err is nil
}

// List returns the last limit Events in creation order.
// It returns all Events if limit <= 0.
func (self *Store) List(ctx context.Context, limit int) ([]telemetry.Event, error) {
	events := make([]telemetry.Event, 0, 16)
	err := self.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(eventsName)
		if nil == bucket {
			return newError("missing %s bucket", eventsName)
		}

		// walks backward from the most recent Event
		cur := bucket.Cursor()
		for k, v := cur.Last(); nil != k; k, v = cur.Prev() {
			if limit > 0 && len(events) >= limit {
				break
			}
			var ev telemetry.Event
			err := cborSrz.Unmarshal(v, &ev)
			if nil != err {
				return wrapError(err, "failed unmarshaling event %X", k)
			}
			events = append(events, ev)
			if err = ctx.Err(); nil != err {
				return err
			}
		}

		return nil
	})
	if nil != err {
		return nil, wrapError(err, "failed db.View")
	}

	// restores creation order
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	return events, nil
}

// Prune removes the Events created before t, at millisecond resolution.
// It returns the number of removed Events.
func (self *Store) Prune(ctx context.Context, t time.Time) (int, error) {
	var removed int
	err := self.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(eventsName)
		if nil == bucket {
			return newError("missing %s bucket", eventsName)
		}

		// UUIDv7 keys start with a 48 bits unix millisecond timestamp
		limit := t.UnixMilli()
		expired := make([][]byte, 0, 16)
		cur := bucket.Cursor()
		for k, _ := cur.First(); nil != k; k, _ = cur.Next() {
			if 16 != len(k) {
				return newError("invalid event key %X", k)
			}
			if int64(binary.BigEndian.Uint64(k[:8])>>16) >= limit {
				break
			}
			expired = append(expired, append([]byte(nil), k...))
		}
		for _, k := range expired {
			err := bucket.Delete(k)
			if nil != err {
				return err
			}
			removed += 1
		}

		return ctx.Err()
	})
	if nil != err {
		return 0, wrapError(err, "failed db.Update")
	}

	return removed, nil
}

// Count returns the number of stored Events.
// It returns -1 in case of error.
func (self *Store) Count() int {
	count := -1
	self.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(eventsName)
		if nil != bucket {
			count = bucket.Stats().KeyN
		}
		return nil
	})

	return count
}

var _ telemetry.Store = &Store{}

func newError(msg string, args ...any) error {
	return utils.NewError(1, telemetry.Error, msg, args...)
}

func wrapError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, telemetry.Error, msg, args...)
}

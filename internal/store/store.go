// Package store persists found vanity addresses in a bbolt database.
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// resultsBucket holds one serialized Record per key, keyed by the
	// big endian bucket sequence number.
	resultsBucket = []byte("vanity-results")

	// ErrRecordNotFound is returned when a record id is unknown.
	ErrRecordNotFound = errors.New("result record not found")

	byteOrder = binary.BigEndian
)

const (
	// DefaultDBName is the file name used inside the data directory.
	DefaultDBName = "results.db"

	// DefaultOpenTimeout bounds how long Open waits for the file lock.
	DefaultOpenTimeout = time.Second

	dbFilePermission = 0600
)

// Store is a bbolt backed log of found results.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path.
func Open(path string, timeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("unable to create db dir: %w", err)
	}

	db, err := bbolt.Open(path, dbFilePermission, &bbolt.Options{
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open result db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resultsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to create results bucket: %w", err)
	}

	log.Infof("Opened result store at %s", path)

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save assigns rec a fresh id and stores it. A zero CreatedAt is set to the
// current time.
func (s *Store) Save(rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		results := tx.Bucket(resultsBucket)

		id, err := results.NextSequence()
		if err != nil {
			return err
		}
		rec.ID = id

		var b bytes.Buffer
		if err := rec.Encode(&b); err != nil {
			return err
		}

		log.Debugf("Storing result %d: %s", id, rec.Address)

		return results.Put(recordKey(id), b.Bytes())
	})
}

// Fetch returns the record with the given id.
func (s *Store) Fetch(id uint64) (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(resultsBucket).Get(recordKey(id))
		if v == nil {
			return ErrRecordNotFound
		}

		var err error
		rec, err = decodeRecord(id, v)
		return err
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Recent returns up to limit records, newest first. A non-positive limit
// returns every record.
func (s *Store) Recent(limit int) ([]Record, error) {
	var records []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(resultsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}

			rec, err := decodeRecord(byteOrder.Uint64(k), v)
			if err != nil {
				return err
			}
			records = append(records, *rec)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(resultsBucket).Stats().KeyN
		return nil
	})

	return n, err
}

func recordKey(id uint64) []byte {
	var k [8]byte
	byteOrder.PutUint64(k[:], id)

	return k[:]
}

func decodeRecord(id uint64, v []byte) (*Record, error) {
	rec := &Record{ID: id}
	if err := rec.Decode(bytes.NewReader(v)); err != nil {
		return nil, fmt.Errorf("unable to decode result %d: %w", id, err)
	}

	return rec, nil
}

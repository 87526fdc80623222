package storage

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

const answersBucket = "answers"

// Bolt provides a BoltDB implementation of the Journal interface.
// Entries are stored as JSON in the answers bucket, keyed by fingerprint.
type Bolt struct {
	DB *bolt.DB
}

// NewBolt opens the BoltDB file at path and makes sure the answers bucket exists.
// It returns an initialized Bolt struct and any error encountered during database setup.
func NewBolt(path string) (Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return Bolt{}, fmt.Errorf("failed to open bolt database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(answersBucket))
		return err
	}); err != nil {
		return Bolt{}, fmt.Errorf("failed to create answers bucket: %w", err)
	}

	return Bolt{DB: db}, nil
}

// Record stores entry under its fingerprint, replacing any earlier entry.
func (b Bolt) Record(_ context.Context, entry Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	return b.DB.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(answersBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found")
		}
		if err := bucket.Put([]byte(entry.Fingerprint), data); err != nil {
			return fmt.Errorf("failed to put entry: %w", err)
		}
		return nil
	})
}

// Lookup returns the entry stored under fingerprint, or ErrEntryNotFound.
func (b Bolt) Lookup(_ context.Context, fingerprint string) (Entry, error) {
	var result Entry

	err := b.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(answersBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found")
		}

		data := bucket.Get([]byte(fingerprint))
		if data == nil {
			return ErrEntryNotFound
		}

		entry, err := decodeEntry(data)
		if err != nil {
			return err
		}
		result = entry

		return nil
	})

	return result, err
}

// Close closes the database.
func (b Bolt) Close() error {
	return b.DB.Close()
}

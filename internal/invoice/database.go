package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	documentBucketName = "documents"
	failureBucketName  = "failures"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	// SaveDocument inserts or replaces a document
	SaveDocument(doc *Document) error

	// GetDocument retrieves a document by ID
	GetDocument(id string) (*Document, error)

	// ListDocuments returns all documents, oldest upload first
	ListDocuments() ([]*Document, error)

	// UpdateDocument applies fn to the stored document and saves the result
	// atomically. Nothing is written if fn returns an error.
	UpdateDocument(id string, fn func(doc *Document) error) (*Document, error)

	// DeleteDocument removes a document from the database
	DeleteDocument(id string) error

	// SaveFailure records an ingest failure
	SaveFailure(failure *Failure) error

	// ListFailures returns all recorded failures, oldest first
	ListFailures() ([]*Failure, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{documentBucketName, failureBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveDocument saves a document to the database
func (b *BoltDB) SaveDocument(doc *Document) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return putDocument(tx, doc)
	})
}

func putDocument(tx *bbolt.Tx, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}
	return tx.Bucket([]byte(documentBucketName)).Put([]byte(doc.ID), data)
}

func getDocument(tx *bbolt.Tx, id string) (*Document, error) {
	data := tx.Bucket([]byte(documentBucketName)).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling document: %w", err)
	}
	return &doc, nil
}

// GetDocument retrieves a document by ID
func (b *BoltDB) GetDocument(id string) (*Document, error) {
	var doc *Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		doc, err = getDocument(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all documents
func (b *BoltDB) ListDocuments() ([]*Document, error) {
	docs := make([]*Document, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(documentBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("unmarshaling document: %w", err)
			}
			docs = append(docs, &doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].UploadedAt.Before(docs[j].UploadedAt)
	})
	return docs, nil
}

// UpdateDocument runs a read-modify-write of one document in a single
// transaction
func (b *BoltDB) UpdateDocument(id string, fn func(doc *Document) error) (*Document, error) {
	var doc *Document
	err := b.db.Update(func(tx *bbolt.Tx) error {
		var err error
		doc, err = getDocument(tx, id)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		return putDocument(tx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document from the database
func (b *BoltDB) DeleteDocument(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(documentBucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return bucket.Delete([]byte(id))
	})
}

// SaveFailure saves a failure keyed by upload ID
func (b *BoltDB) SaveFailure(failure *Failure) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(failureBucketName))
		data, err := json.Marshal(failure)
		if err != nil {
			return fmt.Errorf("marshaling failure: %w", err)
		}
		return bucket.Put([]byte(failure.UploadID), data)
	})
}

// ListFailures returns all failures
func (b *BoltDB) ListFailures() ([]*Failure, error) {
	failures := make([]*Failure, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(failureBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var failure Failure
			if err := json.Unmarshal(v, &failure); err != nil {
				return fmt.Errorf("unmarshaling failure: %w", err)
			}
			failures = append(failures, &failure)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].At.Before(failures[j].At)
	})
	return failures, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

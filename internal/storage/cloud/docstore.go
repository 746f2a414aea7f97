package cloud

import (
	"context"
	"errors"
)

// Collection and document names shared by every driver.
const (
	CollectionUsers      = "users"
	CollectionAttendance = "attendance"
	CollectionSettings   = "settings"

	DocAdmin          = "admin"
	DocCounter        = "counter"
	DocApp            = "app"
	DocConnectionTest = "connection_test"
	// DocMetadata marks an empty users collection and is skipped when listing students.
	DocMetadata = "_metadata"

	FieldLastStudentIndex = "lastStudentIndex"
)

var (
	// ErrDocumentNotFound is returned by Get, Update and Delete for a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentExists is returned by Create when the id is taken.
	ErrDocumentExists = errors.New("document already exists")
)

// Document is a schemaless document body.
type Document map[string]interface{}

// Snapshot is one listed document.
type Snapshot struct {
	ID   string
	Data Document
}

// DocumentStore is the remote document database behind the cloud backend.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Create fails with ErrDocumentExists instead of overwriting.
	Create(ctx context.Context, collection, id string, doc Document) error
	// Set replaces the document, creating it when absent.
	Set(ctx context.Context, collection, id string, doc Document) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields Document) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]Snapshot, error)
	// Increment atomically adds delta to an integer field, creating the document when absent,
	// and returns the new value.
	Increment(ctx context.Context, collection, id, field string, delta int64) (int64, error)
	// Ping checks that the store is reachable and readable.
	Ping(ctx context.Context) error
	Close() error
}

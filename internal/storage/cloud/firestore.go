package cloud

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/noah-isme/sms-storage/pkg/config"
)

// FirestoreStore is a DocumentStore over Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore opens a Firestore client through the Firebase Admin SDK. Without a
// credentials file the SDK falls back to application default credentials.
func NewFirestoreStore(ctx context.Context, cfg config.CloudConfig) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

// NewFirestoreStoreFromClient wraps an existing client.
func NewFirestoreStoreFromClient(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) ref(collection, id string) *firestore.DocumentRef {
	return s.client.Collection(collection).Doc(id)
}

// Get implements DocumentStore.
func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (Document, error) {
	snap, err := s.ref(collection, id).Get(ctx)
	if err != nil {
		return nil, translateFirestore(err)
	}
	return Document(snap.Data()), nil
}

// Create implements DocumentStore.
func (s *FirestoreStore) Create(ctx context.Context, collection, id string, doc Document) error {
	_, err := s.ref(collection, id).Create(ctx, map[string]interface{}(doc))
	return translateFirestore(err)
}

// Set implements DocumentStore.
func (s *FirestoreStore) Set(ctx context.Context, collection, id string, doc Document) error {
	_, err := s.ref(collection, id).Set(ctx, map[string]interface{}(doc))
	return translateFirestore(err)
}

// Update implements DocumentStore.
func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields Document) error {
	if len(fields) == 0 {
		_, err := s.Get(ctx, collection, id)
		return err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: fields[k]})
	}
	_, err := s.ref(collection, id).Update(ctx, updates)
	return translateFirestore(err)
}

// Delete implements DocumentStore.
func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.ref(collection, id).Delete(ctx, firestore.Exists)
	return translateFirestore(err)
}

// List implements DocumentStore.
func (s *FirestoreStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	var out []Snapshot
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, translateFirestore(err)
		}
		out = append(out, Snapshot{ID: snap.Ref.ID, Data: Document(snap.Data())})
	}
	return out, nil
}

// Increment implements DocumentStore inside a Firestore transaction.
func (s *FirestoreStore) Increment(ctx context.Context, collection, id, field string, delta int64) (int64, error) {
	ref := s.ref(collection, id)
	var next int64
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current int64
		snap, err := tx.Get(ref)
		switch {
		case err != nil && status.Code(err) != codes.NotFound:
			return err
		case err == nil:
			if v, derr := snap.DataAt(field); derr == nil {
				current = toInt64(v)
			}
		}
		next = current + delta
		return tx.Set(ref, map[string]interface{}{field: next}, firestore.MergeAll)
	})
	if err != nil {
		return 0, translateFirestore(err)
	}
	return next, nil
}

// Ping reads a probe document. A missing document still proves the store answered.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.ref(CollectionSettings, DocConnectionTest).Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

// Close implements DocumentStore.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func translateFirestore(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrDocumentNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", ErrDocumentExists, err)
	default:
		return err
	}
}

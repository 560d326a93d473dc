// Package mongo implements the MongoDB model store. Each model is a
// collection; the primary key is stored as _id and unique attributes get
// unique indexes.
package mongo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// DefaultDatabase is used when Config.Database is empty.
const DefaultDatabase = "crudkit"

// countersCollection holds the auto-increment sequences, one document per
// model.
const countersCollection = "_crudkit_counters"

// ConnectTimeout bounds connecting and pinging the server during Attach.
var ConnectTimeout = 10 * time.Second

// Backend implements types.Store over a MongoDB database.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	client   *mongo.Client
	db       *mongo.Database
	models   map[string]*Model
}

// NewBackend creates a new MongoDB backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{models: make(map[string]*Model)}
}

// GetModel returns the model registered under name.
func (b *Backend) GetModel(name string) (types.Model, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	m, ok := b.models[name]
	if !ok {
		return nil, types.ErrModelNotFound
	}
	return m, nil
}

// Attach connects to config.MongoURI and ensures the unique indexes of
// every model exist.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.MongoURI))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return fmt.Errorf("ping: %w", err)
	}

	dbName := config.Database
	if dbName == "" {
		dbName = DefaultDatabase
	}
	db := client.Database(dbName)

	names := make([]string, 0, len(config.Models))
	for name := range config.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	models := make(map[string]*Model, len(names))
	for _, name := range names {
		def := config.Models[name]
		if err := def.Validate(); err != nil {
			client.Disconnect(context.Background())
			return fmt.Errorf("model %q: %w", name, err)
		}
		m := newModel(b, db.Collection(name), name, def.WithDefaults())
		if err := m.ensureIndexes(ctx); err != nil {
			client.Disconnect(context.Background())
			return fmt.Errorf("model %q: %w", name, err)
		}
		models[name] = m
	}

	b.client = client
	b.db = db
	b.models = models
	b.attached = true
	return nil
}

// Detach disconnects from the server. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if err := b.client.Disconnect(context.Background()); err != nil {
		return err
	}
	b.client = nil
	b.db = nil
	b.attached = false
	b.models = make(map[string]*Model)
	return nil
}

func (b *Backend) check() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	return nil
}

// nextSeq reserves n values of the model's auto-increment sequence and
// returns the first.
func (b *Backend) nextSeq(ctx context.Context, model string, n int) (int64, error) {
	b.mu.RLock()
	db := b.db
	b.mu.RUnlock()
	if db == nil {
		return 0, types.ErrStoreDetached
	}

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": model},
		bson.M{"$inc": bson.M{"seq": int64(n)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("sequence %s: %w", model, err)
	}
	return counter.Seq - int64(n) + 1, nil
}

// bumpSeq raises the model's auto-increment sequence to at least n so
// explicit keys are never handed out again.
func (b *Backend) bumpSeq(ctx context.Context, model string, n int64) error {
	b.mu.RLock()
	db := b.db
	b.mu.RUnlock()
	if db == nil {
		return types.ErrStoreDetached
	}

	_, err := db.Collection(countersCollection).UpdateOne(ctx,
		bson.M{"_id": model},
		bson.M{"$max": bson.M{"seq": n}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("sequence %s: %w", model, err)
	}
	return nil
}

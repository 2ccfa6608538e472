// Package mongodb implements db.Database on a MongoDB collection, for ballot
// boxes that keep their state in a shared document store.
package mongodb

import (
	"bytes"
	"cmp"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/vocdoni/zk-ballotbox/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionName = "kv"
	opTimeout      = 15 * time.Second
)

// record is the document stored per key. Keys are hex encoded so that the
// lexicographic order of _id matches the byte order of the keys.
type record struct {
	Key   string `bson:"_id"`
	Value []byte `bson:"value"`
}

// MongoDB is a db.Database stored in one collection of a MongoDB database.
type MongoDB struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ db.Database = (*MongoDB)(nil)

// New connects to $MONGODB_URL (localhost by default) and uses opts.Path as
// the database name.
func New(opts db.Options) (*MongoDB, error) {
	if opts.Path == "" {
		return nil, errors.New("mongodb: empty database name")
	}
	url := cmp.Or(os.Getenv("MONGODB_URL"), "mongodb://localhost:27017")
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &MongoDB{
		client: client,
		coll:   client.Database(opts.Path).Collection(collectionName),
	}, nil
}

func (m *MongoDB) Get(key []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var r record
	err := m.coll.FindOne(ctx, bson.M{"_id": hex.EncodeToString(key)}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.Value, nil
}

func (m *MongoDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	idRange := bson.M{"$gte": hex.EncodeToString(prefix)}
	if end := db.PrefixEnd(prefix); end != nil {
		idRange["$lt"] = hex.EncodeToString(end)
	}
	cur, err := m.coll.Find(ctx, bson.M{"_id": idRange},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var r record
		if err := cur.Decode(&r); err != nil {
			return err
		}
		key, err := hex.DecodeString(r.Key)
		if err != nil {
			return fmt.Errorf("mongodb: corrupted key %q: %w", r.Key, err)
		}
		if !callback(key[len(prefix):], r.Value) {
			break
		}
	}
	return cur.Err()
}

func (m *MongoDB) WriteTx() db.WriteTx {
	return &WriteTx{db: m, pending: make(map[string][]byte)}
}

func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Compact is a no-op, MongoDB manages its own storage.
func (m *MongoDB) Compact() error {
	return nil
}

// WriteTx buffers writes and flushes them with a single bulk write inside a
// multi-document transaction, which requires MongoDB to run as a replica set.
type WriteTx struct {
	db      *MongoDB
	pending map[string][]byte
	done    bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if tx.done {
		return nil, db.ErrTxDone
	}
	if v, ok := tx.pending[string(key)]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(v), nil
	}
	return tx.db.Get(key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if tx.done {
		return db.ErrTxDone
	}
	view := make(map[string][]byte)
	if err := tx.db.Iterate(prefix, func(k, v []byte) bool {
		view[string(k)] = v
		return true
	}); err != nil {
		return err
	}
	for k, v := range tx.pending {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(view, k[len(prefix):])
			continue
		}
		view[k[len(prefix):]] = v
	}
	for _, k := range slices.Sorted(maps.Keys(view)) {
		if !callback([]byte(k), view[k]) {
			break
		}
	}
	return nil
}

func (tx *WriteTx) Set(key, value []byte) error {
	if tx.done {
		return db.ErrTxDone
	}
	v := bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	tx.pending[string(key)] = v
	return nil
}

func (tx *WriteTx) Delete(key []byte) error {
	if tx.done {
		return db.ErrTxDone
	}
	tx.pending[string(key)] = nil
	return nil
}

func (tx *WriteTx) Apply(other db.WriteTx) error {
	if tx.done {
		return db.ErrTxDone
	}
	o, ok := db.UnwrapWriteTx(other).(*WriteTx)
	if !ok {
		return fmt.Errorf("cannot apply %T to a mongodb transaction", other)
	}
	for k, v := range o.pending {
		tx.pending[k] = bytes.Clone(v)
	}
	return nil
}

func (tx *WriteTx) Commit() error {
	if tx.done {
		return db.ErrTxDone
	}
	tx.done = true
	if len(tx.pending) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(tx.pending))
	for _, k := range slices.Sorted(maps.Keys(tx.pending)) {
		id := hex.EncodeToString([]byte(k))
		v := tx.pending[k]
		if v == nil {
			models = append(models, mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": id}))
			continue
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": id}).
			SetReplacement(record{Key: id, Value: v}).
			SetUpsert(true))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	sess, err := tx.db.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongodb session: %w", err)
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return tx.db.coll.BulkWrite(sc, models, options.BulkWrite().SetOrdered(true))
	})
	return err
}

func (tx *WriteTx) Discard() {
	tx.done = true
	tx.pending = nil
}

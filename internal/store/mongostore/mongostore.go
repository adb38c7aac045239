// Package mongostore implements the gift collection on MongoDB. The live
// query is a change stream on the collection that re-runs the filtered find
// on every event; batches commit inside a multi-document transaction, so the
// deployment must be a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/five82/giftlist/internal/gift"
	"github.com/five82/giftlist/internal/store"
)

var _ store.GiftStore = (*Store)(nil)

const defaultRetryBase = time.Second

// document mirrors a stored gift: { name, image, purchased, purchaserName? }.
type document struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	Image         string             `bson:"image"`
	Purchased     bool               `bson:"purchased"`
	PurchaserName string             `bson:"purchaserName,omitempty"`
}

func (d document) toGift() gift.Gift {
	return gift.Gift{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Image:         d.Image,
		Purchased:     d.Purchased,
		PurchaserName: d.PurchaserName,
	}
}

// Store talks to one MongoDB collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
	retryBase  time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for change stream failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetryBase sets the first delay before reopening a failed change stream.
func WithRetryBase(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retryBase = d
		}
	}
}

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri, database, collection string, opts ...Option) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return New(client, client.Database(database).Collection(collection), opts...), nil
}

// New wraps an existing client and collection.
func New(client *mongo.Client, collection *mongo.Collection, opts ...Option) *Store {
	s := &Store{
		client:     client,
		collection: collection,
		logger:     slog.New(slog.DiscardHandler),
		retryBase:  defaultRetryBase,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Subscribe opens a change stream and re-delivers the filtered gifts on every
// change. A broken stream is reported as an error snapshot and reopened with
// backoff.
func (s *Store) Subscribe(ctx context.Context, filter store.Filter) (<-chan store.Snapshot, store.CancelFunc, error) {
	ch, cancel := store.Watch(ctx, func(ctx context.Context, emit store.Emitter) {
		s.watch(ctx, filter, emit)
	})
	return ch, cancel, nil
}

func (s *Store) watch(ctx context.Context, filter store.Filter, emit store.Emitter) {
	failures := 0
	for {
		delivered, err := s.stream(ctx, filter, emit)
		if ctx.Err() != nil {
			return
		}
		if delivered {
			failures = 0
		}
		failures++
		emit(store.Snapshot{Err: err})

		wait := store.Backoff(failures, s.retryBase)
		s.logger.Warn("gift change stream failed", "error", err, "retry_in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// stream runs one change stream until it fails. The stream is opened before
// the initial find so no change between the two is lost.
func (s *Store) stream(ctx context.Context, filter store.Filter, emit store.Emitter) (bool, error) {
	cs, err := s.collection.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return false, fmt.Errorf("open change stream: %w", err)
	}
	defer func() { _ = cs.Close(context.Background()) }()

	gifts, err := s.find(ctx, filter)
	if err != nil {
		return false, err
	}
	emit(store.Snapshot{Gifts: gifts})

	for cs.Next(ctx) {
		gifts, err := s.find(ctx, filter)
		if err != nil {
			return true, err
		}
		emit(store.Snapshot{Gifts: gifts})
	}
	if err := cs.Err(); err != nil {
		return true, fmt.Errorf("change stream: %w", err)
	}
	return true, store.ErrSubscriptionClosed
}

func (s *Store) find(ctx context.Context, filter store.Filter) ([]gift.Gift, error) {
	cur, err := s.collection.Find(ctx, filterDoc(filter))
	if err != nil {
		return nil, fmt.Errorf("find gifts: %w", err)
	}
	defer func() { _ = cur.Close(context.Background()) }()

	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode gifts: %w", err)
	}
	gifts := make([]gift.Gift, 0, len(docs))
	for _, d := range docs {
		gifts = append(gifts, d.toGift())
	}
	store.SortGifts(gifts)
	return gifts, nil
}

// Commit applies the batch in one transaction. Any unmatched update aborts it.
func (s *Store) Commit(ctx context.Context, batch store.Batch) error {
	if err := batch.Validate(0); err != nil {
		return err
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, s.applyBatch(sc, batch)
	})
	return err
}

func (s *Store) applyBatch(ctx context.Context, batch store.Batch) error {
	var taken, missing []string
	for _, u := range batch.Updates {
		oid, err := primitive.ObjectIDFromHex(u.ID)
		if err != nil {
			missing = append(missing, u.ID)
			continue
		}
		res, err := s.collection.UpdateOne(ctx, updateFilter(oid, batch.RequireUnpurchased), updateDoc(u))
		if err != nil {
			return fmt.Errorf("update gift %s: %w", u.ID, err)
		}
		if res.MatchedCount > 0 {
			continue
		}
		n, err := s.collection.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return fmt.Errorf("check gift %s: %w", u.ID, err)
		}
		if n == 0 {
			missing = append(missing, u.ID)
		} else {
			taken = append(taken, u.ID)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", store.ErrNotFound, missing)
	}
	if len(taken) > 0 {
		return &store.TakenError{IDs: taken}
	}
	return nil
}

// Insert adds gifts and returns the ObjectIDs MongoDB assigned.
func (s *Store) Insert(ctx context.Context, gifts []gift.Gift) ([]string, error) {
	if len(gifts) == 0 {
		return nil, nil
	}
	docs := make([]interface{}, 0, len(gifts))
	for _, g := range gifts {
		docs = append(docs, document{
			Name:          g.Name,
			Image:         g.Image,
			Purchased:     g.Purchased,
			PurchaserName: g.PurchaserName,
		})
	}
	res, err := s.collection.InsertMany(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("insert gifts: %w", err)
	}
	ids := make([]string, 0, len(res.InsertedIDs))
	for _, raw := range res.InsertedIDs {
		oid, ok := raw.(primitive.ObjectID)
		if !ok {
			return ids, errors.New("unexpected inserted id type")
		}
		ids = append(ids, oid.Hex())
	}
	return ids, nil
}

func filterDoc(filter store.Filter) bson.M {
	return bson.M{"purchased": filter.Purchased}
}

func updateFilter(id primitive.ObjectID, requireUnpurchased bool) bson.M {
	f := bson.M{"_id": id}
	if requireUnpurchased {
		f["purchased"] = false
	}
	return f
}

func updateDoc(u store.Update) bson.M {
	return bson.M{"$set": bson.M{
		"purchased":     u.Purchased,
		"purchaserName": u.PurchaserName,
	}}
}

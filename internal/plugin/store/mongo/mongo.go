package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/yidakee/partivotes/internal/config"
	"github.com/yidakee/partivotes/internal/model"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	pollsCollection = "polls"
	votesCollection = "votes"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name:   "mongo",
		Loader: load,
	})
}

func load(ctx context.Context) (registrystore.PollStore, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		defaults := config.DefaultConfig()
		cfg = &defaults
	}
	return Open(ctx, cfg)
}

// Open connects to the MongoDB deployment named by cfg and verifies it with a ping.
func Open(ctx context.Context, cfg *config.Config) (*MongoStore, error) {
	target := cfg.DatabaseName()
	opts := options.Client().ApplyURI(cfg.MongoURI)
	if cfg.HasCredentials() {
		opts.SetAuth(options.Credential{
			Username: cfg.MongoUser,
			Password: cfg.MongoPassword,
		})
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
		opts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, &registrystore.ConnectionError{Target: target, Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, &registrystore.ConnectionError{Target: target, Err: err}
	}
	log.Debug("Connected to MongoDB", "database", target)
	return &MongoStore{
		client: client,
		db:     client.Database(target),
	}, nil
}

// MongoStore implements PollStore using MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func (s *MongoStore) polls() *mongo.Collection { return s.db.Collection(pollsCollection) }
func (s *MongoStore) votes() *mongo.Collection { return s.db.Collection(votesCollection) }

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return &registrystore.ConnectionError{Target: s.db.Name(), Err: err}
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// pollFilter builds a conjunctive filter from the populated query fields.
func pollFilter(q registrystore.PollQuery) bson.M {
	filter := bson.M{}
	if q.Type != "" {
		filter["type"] = q.Type
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Creator != "" {
		filter["creator"] = containsIgnoreCase(q.Creator)
	}
	if q.Keyword != "" {
		filter["$or"] = bson.A{
			bson.M{"title": containsIgnoreCase(q.Keyword)},
			bson.M{"description": containsIgnoreCase(q.Keyword)},
		}
	}
	return filter
}

func containsIgnoreCase(s string) bson.Regex {
	return bson.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func (s *MongoStore) ListPolls(ctx context.Context, q registrystore.PollQuery) ([]model.Poll, error) {
	filter := pollFilter(q)
	limit := q.Limit
	if limit <= 0 {
		limit = config.DefaultListLimit
	}

	opts := options.Find().SetLimit(int64(limit))
	if q.SortField != "" {
		if registrystore.IsSortable(q.SortField) {
			dir := q.SortDirection
			if dir == 0 {
				dir = registrystore.SortDescending
			}
			opts.SetSort(bson.D{{Key: q.SortField, Value: int(dir)}})
		} else {
			log.Warn("Ignoring unknown sort field", "field", q.SortField)
		}
	}

	cur, err := s.polls().Find(ctx, filter, opts)
	if err != nil && q.SortField != "" {
		log.Warn("Sorted poll query failed, retrying unsorted", "field", q.SortField, "err", err)
		cur, err = s.polls().Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	return decodePolls(ctx, cur)
}

// decodePolls decodes each document separately so that one malformed poll
// does not hide the rest.
func decodePolls(ctx context.Context, cur *mongo.Cursor) ([]model.Poll, error) {
	defer cur.Close(ctx)
	polls := []model.Poll{}
	for cur.Next(ctx) {
		var p model.Poll
		if err := cur.Decode(&p); err != nil {
			log.Warn("Skipping undecodable poll", "id", rawID(cur.Current), "err", err)
			continue
		}
		polls = append(polls, p)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to read polls: %w", err)
	}
	return polls, nil
}

func rawID(doc bson.Raw) string {
	v, err := doc.LookupErr("_id")
	if err != nil {
		return "?"
	}
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	return v.String()
}

func (s *MongoStore) GetPoll(ctx context.Context, id bson.ObjectID) (*model.Poll, error) {
	var p model.Poll
	err := s.polls().FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "poll", ID: id.Hex()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll %s: %w", id.Hex(), err)
	}
	return &p, nil
}

func (s *MongoStore) AllPolls(ctx context.Context) ([]model.Poll, error) {
	cur, err := s.polls().Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to read polls: %w", err)
	}
	var polls []model.Poll
	if err := cur.All(ctx, &polls); err != nil {
		return nil, fmt.Errorf("failed to decode polls: %w", err)
	}
	return polls, nil
}

func (s *MongoStore) AllVotes(ctx context.Context) ([]model.Vote, error) {
	cur, err := s.votes().Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to read votes: %w", err)
	}
	var votes []model.Vote
	if err := cur.All(ctx, &votes); err != nil {
		return nil, fmt.Errorf("failed to decode votes: %w", err)
	}
	return votes, nil
}

func (s *MongoStore) CountPolls(ctx context.Context) (int64, error) {
	n, err := s.polls().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count polls: %w", err)
	}
	return n, nil
}

func (s *MongoStore) CountVotes(ctx context.Context) (int64, error) {
	n, err := s.votes().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return n, nil
}

func (s *MongoStore) CountVotesForPoll(ctx context.Context, pollID bson.ObjectID) (int64, error) {
	n, err := s.votes().CountDocuments(ctx, bson.M{"pollId": pollID})
	if err != nil {
		return 0, fmt.Errorf("failed to count votes for poll %s: %w", pollID.Hex(), err)
	}
	return n, nil
}

func (s *MongoStore) VoteTally(ctx context.Context) (map[bson.ObjectID]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$pollId"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.votes().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to tally votes: %w", err)
	}
	defer cur.Close(ctx)

	tally := map[bson.ObjectID]int64{}
	for cur.Next(ctx) {
		var row struct {
			PollID any   `bson:"_id"`
			Count  int64 `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode vote tally: %w", err)
		}
		// Votes whose pollId is not an ObjectID cannot reference a poll.
		if oid, ok := row.PollID.(bson.ObjectID); ok {
			tally[oid] = row.Count
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vote tally: %w", err)
	}
	return tally, nil
}

func (s *MongoStore) DeletePoll(ctx context.Context, id bson.ObjectID) (int64, error) {
	res, err := s.polls().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, fmt.Errorf("failed to delete poll %s: %w", id.Hex(), err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) DeleteVotesForPoll(ctx context.Context, pollID bson.ObjectID) (int64, error) {
	res, err := s.votes().DeleteMany(ctx, bson.M{"pollId": pollID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete votes for poll %s: %w", pollID.Hex(), err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) DeleteAllPolls(ctx context.Context) (int64, error) {
	res, err := s.polls().DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete polls: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) DeleteAllVotes(ctx context.Context) (int64, error) {
	res, err := s.votes().DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete votes: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) InsertPolls(ctx context.Context, polls []model.Poll) error {
	if len(polls) == 0 {
		return nil
	}
	docs := make([]any, len(polls))
	for i := range polls {
		docs[i] = polls[i]
	}
	if _, err := s.polls().InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert polls: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertVotes(ctx context.Context, votes []model.Vote) error {
	if len(votes) == 0 {
		return nil
	}
	docs := make([]any, len(votes))
	for i := range votes {
		docs[i] = votes[i]
	}
	if _, err := s.votes().InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert votes: %w", err)
	}
	return nil
}

func (s *MongoStore) Stats(ctx context.Context) (*registrystore.DatabaseStats, error) {
	var raw bson.M
	if err := s.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to read database stats: %w", err)
	}
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	sort.Strings(names)
	return &registrystore.DatabaseStats{
		Name:        s.db.Name(),
		DataSize:    toInt64(raw["dataSize"]),
		StorageSize: toInt64(raw["storageSize"]),
		Collections: names,
	}, nil
}

// toInt64 converts the numeric types dbStats may report.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func (s *MongoStore) IncompletePollIDs(ctx context.Context) ([]bson.ObjectID, error) {
	// {field: nil} matches both missing and null values.
	filter := bson.M{"$or": bson.A{
		bson.M{"title": bson.M{"$in": bson.A{nil, ""}}},
		bson.M{"status": bson.M{"$in": bson.A{nil, ""}}},
		bson.M{"options": nil},
		bson.M{"options": bson.M{"$size": 0}},
	}}
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := s.polls().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find incomplete polls: %w", err)
	}
	var rows []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode incomplete polls: %w", err)
	}
	ids := make([]bson.ObjectID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

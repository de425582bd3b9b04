package store

import (
	"context"
	"fmt"

	"github.com/yidakee/partivotes/internal/model"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// SortDirection orders list results.
type SortDirection int

const (
	SortDescending SortDirection = -1
	SortAscending  SortDirection = 1
)

// DefaultSortField is used when a query does not name one.
const DefaultSortField = "createdAt"

// SortableFields are the poll fields a list may be ordered by.
var SortableFields = []string{
	"createdAt", "updatedAt", "startDate", "endDate",
	"title", "type", "status", "creator", "totalVotes",
}

// IsSortable reports whether field is one of SortableFields.
func IsSortable(field string) bool {
	for _, f := range SortableFields {
		if f == field {
			return true
		}
	}
	return false
}

// PollQuery selects a page of polls. Zero-valued filters are ignored.
type PollQuery struct {
	Type    model.PollType
	Status  model.PollStatus
	Creator string // case-insensitive substring of the creator address
	Keyword string // case-insensitive substring of title or description
	Limit   int

	// SortField empty means unsorted (store order).
	SortField     string
	SortDirection SortDirection
}

// DatabaseStats summarizes storage usage.
type DatabaseStats struct {
	Name        string
	DataSize    int64
	StorageSize int64
	Collections []string
}

// PollStore is the document store holding the polls and votes collections.
type PollStore interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	ListPolls(ctx context.Context, query PollQuery) ([]model.Poll, error)
	GetPoll(ctx context.Context, id bson.ObjectID) (*model.Poll, error)
	AllPolls(ctx context.Context) ([]model.Poll, error)
	AllVotes(ctx context.Context) ([]model.Vote, error)

	CountPolls(ctx context.Context) (int64, error)
	CountVotes(ctx context.Context) (int64, error)
	CountVotesForPoll(ctx context.Context, pollID bson.ObjectID) (int64, error)
	// VoteTally returns the number of votes referencing each poll.
	VoteTally(ctx context.Context) (map[bson.ObjectID]int64, error)

	DeletePoll(ctx context.Context, id bson.ObjectID) (int64, error)
	DeleteVotesForPoll(ctx context.Context, pollID bson.ObjectID) (int64, error)
	DeleteAllPolls(ctx context.Context) (int64, error)
	DeleteAllVotes(ctx context.Context) (int64, error)

	InsertPolls(ctx context.Context, polls []model.Poll) error
	InsertVotes(ctx context.Context, votes []model.Vote) error

	Stats(ctx context.Context) (*DatabaseStats, error)
	// IncompletePollIDs returns polls missing a title, options or status.
	IncompletePollIDs(ctx context.Context) ([]bson.ObjectID, error)
}

// Loader creates a store from the configuration carried by ctx.
type Loader func(ctx context.Context) (PollStore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}


package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PollType is the ballot style of a poll.
type PollType string

const (
	PollTypeSingleChoice   PollType = "SINGLE_CHOICE"
	PollTypeMultipleChoice PollType = "MULTIPLE_CHOICE"
	PollTypeRankedChoice   PollType = "RANKED_CHOICE"
)

// PollTypes lists every known poll type in display order.
var PollTypes = []PollType{PollTypeSingleChoice, PollTypeMultipleChoice, PollTypeRankedChoice}

// PollStatus is the lifecycle state of a poll.
type PollStatus string

const (
	PollStatusActive    PollStatus = "ACTIVE"
	PollStatusPending   PollStatus = "PENDING"
	PollStatusEnded     PollStatus = "ENDED"
	PollStatusCancelled PollStatus = "CANCELLED"
)

// PollStatuses lists every known poll status in display order.
var PollStatuses = []PollStatus{PollStatusActive, PollStatusPending, PollStatusEnded, PollStatusCancelled}

// ParsePollType returns the poll type matching s, ignoring case.
func ParsePollType(s string) (PollType, bool) {
	for _, t := range PollTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// ParsePollStatus returns the poll status matching s, ignoring case.
func ParsePollStatus(s string) (PollStatus, bool) {
	for _, st := range PollStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// PollOption is one choice of a poll with its denormalized vote counter.
type PollOption struct {
	ID    *bson.ObjectID `bson:"_id,omitempty"`
	Text  string         `bson:"text"          validate:"required"`
	Votes int64          `bson:"votes"`
}

// Poll is a votable item as stored in the polls collection.
//
// TotalVotes is a denormalized counter maintained by the voting application;
// it is reported next to the actual vote count and never reconciled here.
type Poll struct {
	ID            bson.ObjectID `bson:"_id"`
	Title         string        `bson:"title"                   validate:"required"`
	Description   string        `bson:"description"`
	Creator       string        `bson:"creator"                 validate:"required"`
	Options       []PollOption  `bson:"options"                 validate:"required,min=1,dive"`
	StartDate     *time.Time    `bson:"startDate,omitempty"`
	EndDate       *time.Time    `bson:"endDate,omitempty"`
	Type          PollType      `bson:"type"                    validate:"required,oneof=SINGLE_CHOICE MULTIPLE_CHOICE RANKED_CHOICE"`
	MaxSelections *int64        `bson:"maxSelections,omitempty"`
	Status        PollStatus    `bson:"status"                  validate:"required,oneof=ACTIVE PENDING ENDED CANCELLED"`
	Network       string        `bson:"network,omitempty"`
	TotalVotes    int64         `bson:"totalVotes"`
	CreatedAt     *time.Time    `bson:"createdAt,omitempty"`
	UpdatedAt     *time.Time    `bson:"updatedAt,omitempty"`
	Version       *int64        `bson:"__v,omitempty"`

	// Extra holds document fields not modelled above.
	Extra bson.M `bson:",inline"`
}

// Vote is a single ballot referencing one poll. Apart from the poll
// reference, its fields are opaque to the manager and only copied.
type Vote struct {
	ID               bson.ObjectID `bson:"_id"`
	PollID           bson.ObjectID `bson:"pollId"`
	Voter            string        `bson:"voter,omitempty"`
	Option           string        `bson:"option,omitempty"`
	Options          []string      `bson:"options,omitempty"`
	Timestamp        *time.Time    `bson:"timestamp,omitempty"`
	TxID             string        `bson:"txId,omitempty"`
	VerificationHash string        `bson:"verificationHash,omitempty"`
	Type             string        `bson:"type,omitempty"`
	Network          string        `bson:"network,omitempty"`
	Version          *int64        `bson:"__v,omitempty"`

	Extra bson.M `bson:",inline"`
}

package model

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PollIDLength is the length of the hex form of a poll identifier.
const PollIDLength = 24

// InvalidIDError indicates an identifier that is not a 24-character hex token.
type InvalidIDError struct {
	ID     string
	Reason string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid poll ID %q: %s", e.ID, e.Reason)
}

// ParsePollID validates the shape of a poll identifier and converts it to an ObjectID.
func ParsePollID(raw string) (bson.ObjectID, error) {
	id := strings.TrimSpace(raw)
	if len(id) != PollIDLength {
		return bson.ObjectID{}, &InvalidIDError{ID: raw, Reason: fmt.Sprintf("expected %d characters, got %d", PollIDLength, len(id))}
	}
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, &InvalidIDError{ID: raw, Reason: "not a hexadecimal object id"}
	}
	return oid, nil
}

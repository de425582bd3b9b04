package admin

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/itchyny/gojq"
	"github.com/yidakee/partivotes/internal/backup"
	"github.com/yidakee/partivotes/internal/model"
)

// Project runs a jq expression over the JSON rendering of polls (the same
// shape as the polls array of a backup file) and returns every result.
func Project(polls []model.Poll, expr string) ([]any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	doc, err := toJSONValue(backup.NewSnapshot(polls, nil).Polls)
	if err != nil {
		return nil, err
	}

	var out []any
	iter := query.Run(doc)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// toJSONValue converts v into the plain maps and slices gojq operates on.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode polls: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode polls: %w", err)
	}
	return doc, nil
}

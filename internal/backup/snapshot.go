package backup

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/yidakee/partivotes/internal/model"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// MalformedBackupError indicates a backup file that cannot be restored.
type MalformedBackupError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedBackupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid backup file %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid backup file %s: %s", e.Path, e.Reason)
}

func (e *MalformedBackupError) Unwrap() error { return e.Err }

// Snapshot is the on-disk backup format. Identifiers are hex strings and
// timestamps are text so the file stays plain, diffable JSON.
type Snapshot struct {
	Polls []PollRecord `json:"polls"`
	Votes []VoteRecord `json:"votes"`
}

type OptionRecord struct {
	ID    string `json:"_id,omitempty"`
	Text  string `json:"text"`
	Votes int64  `json:"votes"`
}

type PollRecord struct {
	ID            string         `json:"_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Creator       string         `json:"creator"`
	Options       []OptionRecord `json:"options"`
	StartDate     *Date          `json:"startDate,omitempty"`
	EndDate       *Date          `json:"endDate,omitempty"`
	Type          string         `json:"type"`
	MaxSelections *int64         `json:"maxSelections,omitempty"`
	Status        string         `json:"status"`
	Network       string         `json:"network,omitempty"`
	TotalVotes    int64          `json:"totalVotes"`
	CreatedAt     *Date          `json:"createdAt,omitempty"`
	UpdatedAt     *Date          `json:"updatedAt,omitempty"`
	Version       *int64         `json:"__v,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

type VoteRecord struct {
	ID               string         `json:"_id"`
	PollID           string         `json:"pollId"`
	Voter            string         `json:"voter,omitempty"`
	Option           string         `json:"option,omitempty"`
	Options          []string       `json:"options,omitempty"`
	Timestamp        *Date          `json:"timestamp,omitempty"`
	TxID             string         `json:"txId,omitempty"`
	VerificationHash string         `json:"verificationHash,omitempty"`
	Type             string         `json:"type,omitempty"`
	Network          string         `json:"network,omitempty"`
	Version          *int64         `json:"__v,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// NewSnapshot flattens polls and votes into their portable form.
func NewSnapshot(polls []model.Poll, votes []model.Vote) *Snapshot {
	s := &Snapshot{
		Polls: make([]PollRecord, len(polls)),
		Votes: make([]VoteRecord, len(votes)),
	}
	for i := range polls {
		s.Polls[i] = pollRecord(&polls[i])
	}
	for i := range votes {
		s.Votes[i] = voteRecord(&votes[i])
	}
	return s
}

func pollRecord(p *model.Poll) PollRecord {
	var options []OptionRecord
	if p.Options != nil {
		options = make([]OptionRecord, len(p.Options))
		for i, o := range p.Options {
			options[i] = OptionRecord{Text: o.Text, Votes: o.Votes}
			if o.ID != nil {
				options[i].ID = o.ID.Hex()
			}
		}
	}
	return PollRecord{
		ID:            p.ID.Hex(),
		Title:         p.Title,
		Description:   p.Description,
		Creator:       p.Creator,
		Options:       options,
		StartDate:     dateOf(p.StartDate),
		EndDate:       dateOf(p.EndDate),
		Type:          string(p.Type),
		MaxSelections: p.MaxSelections,
		Status:        string(p.Status),
		Network:       p.Network,
		TotalVotes:    p.TotalVotes,
		CreatedAt:     dateOf(p.CreatedAt),
		UpdatedAt:     dateOf(p.UpdatedAt),
		Version:       p.Version,
		Extra:         textualMap(p.Extra),
	}
}

func voteRecord(v *model.Vote) VoteRecord {
	return VoteRecord{
		ID:               v.ID.Hex(),
		PollID:           v.PollID.Hex(),
		Voter:            v.Voter,
		Option:           v.Option,
		Options:          v.Options,
		Timestamp:        dateOf(v.Timestamp),
		TxID:             v.TxID,
		VerificationHash: v.VerificationHash,
		Type:             v.Type,
		Network:          v.Network,
		Version:          v.Version,
		Extra:            textualMap(v.Extra),
	}
}

func textualMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = textual(v)
	}
	return out
}

// textual converts BSON values of unmodelled fields into JSON-friendly ones.
func textual(v any) any {
	switch t := v.(type) {
	case bson.ObjectID:
		return t.Hex()
	case bson.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case int32:
		return int64(t)
	case bson.Decimal128:
		return t.String()
	case bson.Binary:
		return base64.StdEncoding.EncodeToString(t.Data)
	case bson.M:
		return textualMap(t)
	case map[string]any:
		return textualMap(t)
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = textual(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = textual(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = textual(e)
		}
		return out
	default:
		return v
	}
}

// Encode writes the snapshot as indented JSON.
func (s *Snapshot) Encode(w io.Writer) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// DecodeSnapshot parses a backup file. Both the "polls" and the "votes"
// arrays must be present.
func DecodeSnapshot(path string, data []byte) (*Snapshot, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, &MalformedBackupError{Path: path, Reason: "not a JSON object", Err: err}
	}
	for _, key := range []string{"polls", "votes"} {
		if _, ok := sections[key]; !ok {
			return nil, &MalformedBackupError{Path: path, Reason: fmt.Sprintf("missing %q collection", key)}
		}
	}

	s := &Snapshot{}
	if err := decodeSection(sections["polls"], &s.Polls); err != nil {
		return nil, &MalformedBackupError{Path: path, Reason: "cannot decode polls", Err: err}
	}
	if err := decodeSection(sections["votes"], &s.Votes); err != nil {
		return nil, &MalformedBackupError{Path: path, Reason: "cannot decode votes", Err: err}
	}
	return s, nil
}

func decodeSection(raw json.RawMessage, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dest)
}

// Documents reconstructs native identifiers and returns the store documents.
// Nothing is returned unless every record converts.
func (s *Snapshot) Documents(path string) ([]model.Poll, []model.Vote, error) {
	polls := make([]model.Poll, len(s.Polls))
	for i, r := range s.Polls {
		p, err := r.poll()
		if err != nil {
			return nil, nil, &MalformedBackupError{Path: path, Reason: fmt.Sprintf("polls[%d]", i), Err: err}
		}
		polls[i] = p
	}
	votes := make([]model.Vote, len(s.Votes))
	for i, r := range s.Votes {
		v, err := r.vote()
		if err != nil {
			return nil, nil, &MalformedBackupError{Path: path, Reason: fmt.Sprintf("votes[%d]", i), Err: err}
		}
		votes[i] = v
	}
	return polls, votes, nil
}

func objectID(field, hex string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.ObjectID{}, fmt.Errorf("%s %q is not an object id", field, hex)
	}
	return oid, nil
}

func (r PollRecord) poll() (model.Poll, error) {
	id, err := objectID("_id", r.ID)
	if err != nil {
		return model.Poll{}, err
	}
	var options []model.PollOption
	if r.Options != nil {
		options = make([]model.PollOption, len(r.Options))
		for i, o := range r.Options {
			options[i] = model.PollOption{Text: o.Text, Votes: o.Votes}
			if o.ID != "" {
				oid, err := objectID(fmt.Sprintf("options[%d]._id", i), o.ID)
				if err != nil {
					return model.Poll{}, err
				}
				options[i].ID = &oid
			}
		}
	}
	return model.Poll{
		ID:            id,
		Title:         r.Title,
		Description:   r.Description,
		Creator:       r.Creator,
		Options:       options,
		StartDate:     r.StartDate.toTime(),
		EndDate:       r.EndDate.toTime(),
		Type:          model.PollType(r.Type),
		MaxSelections: r.MaxSelections,
		Status:        model.PollStatus(r.Status),
		Network:       r.Network,
		TotalVotes:    r.TotalVotes,
		CreatedAt:     r.CreatedAt.toTime(),
		UpdatedAt:     r.UpdatedAt.toTime(),
		Version:       r.Version,
		Extra:         nativeMap(r.Extra),
	}, nil
}

func (r VoteRecord) vote() (model.Vote, error) {
	id, err := objectID("_id", r.ID)
	if err != nil {
		return model.Vote{}, err
	}
	pollID, err := objectID("pollId", r.PollID)
	if err != nil {
		return model.Vote{}, err
	}
	return model.Vote{
		ID:               id,
		PollID:           pollID,
		Voter:            r.Voter,
		Option:           r.Option,
		Options:          r.Options,
		Timestamp:        r.Timestamp.toTime(),
		TxID:             r.TxID,
		VerificationHash: r.VerificationHash,
		Type:             r.Type,
		Network:          r.Network,
		Version:          r.Version,
		Extra:            nativeMap(r.Extra),
	}, nil
}

// naiveLayout matches the offset-less timestamps, with an optional
// fraction, found in backups from the earlier PartiVotes tooling. Those
// values are UTC.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Date is a timestamp in a backup file. It is written as RFC 3339 and read
// from RFC 3339 or from zone-less ISO 8601 text, which is taken as UTC.
type Date time.Time

func dateOf(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	d := Date(*t)
	return &d
}

func (d *Date) toTime() *time.Time {
	if d == nil {
		return nil
	}
	t := time.Time(*d).UTC()
	return &t
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(d).UTC().Format(time.RFC3339Nano))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := parseDate(raw)
	if err != nil {
		return err
	}
	*d = Date(t)
	return nil
}

// parseDate parses RFC 3339 text, falling back to a zone-less ISO 8601
// timestamp in UTC.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return t, nil
}

func nativeMap(m map[string]any) bson.M {
	if len(m) == 0 {
		return nil
	}
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = native(v)
	}
	return out
}

// native turns decoded JSON numbers back into int64 where they are integral.
func native(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		return nativeMap(t)
	case []any:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = native(e)
		}
		return out
	default:
		return v
	}
}

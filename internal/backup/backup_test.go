package backup_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yidakee/partivotes/internal/backup"
	"github.com/yidakee/partivotes/internal/config"
	"github.com/yidakee/partivotes/internal/model"
	"github.com/yidakee/partivotes/internal/plugin/store/memory"
	"github.com/yidakee/partivotes/internal/prompt"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
	"github.com/yidakee/partivotes/internal/testutil/storetest"
	"github.com/yidakee/partivotes/internal/testutil/tests3"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// tick returns a clock advancing one second per call.
func tick() func() time.Time {
	t := time.Date(2025, 4, 2, 9, 30, 0, 0, time.Local)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newManager(t *testing.T, s registrystore.PollStore, keep int, opts ...backup.Option) *backup.Manager {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BackupDir = filepath.Join(t.TempDir(), "backups")
	cfg.MaxBackups = keep
	return backup.NewManager(s, &cfg, append([]backup.Option{backup.WithClock(tick())}, opts...)...)
}

func fixtures() ([]model.Poll, []model.Vote) {
	a := storetest.NewPoll("Treasury allocation", 0)
	a.Extra = bson.M{"category": "governance", "weight": int64(3), "ratio": 0.5}
	version := int64(0)
	a.Version = &version
	b := storetest.NewPoll("Logo contest", time.Hour)
	b.Type = model.PollTypeMultipleChoice
	maxSel := int64(2)
	b.MaxSelections = &maxSel
	v1 := storetest.NewVote(a.ID, "addr1_alice")
	v2 := storetest.NewVote(b.ID, "addr1_bob")
	v2.Option = ""
	v2.Options = []string{"Yes", "No"}
	v2.Extra = bson.M{"signature": "abc"}
	return []model.Poll{a, b}, []model.Vote{v1, v2}
}

func TestCreateAndRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	polls, votes := fixtures()
	storetest.Seed(t, ctx, s, polls, votes)
	m := newManager(t, s, 10)

	res, err := m.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Polls)
	assert.Equal(t, 2, res.Votes)
	assert.Equal(t, "partivotes_backup_20250402_093001.json", res.Name)
	assert.Positive(t, res.Size)

	_, err = s.DeleteAllPolls(ctx)
	require.NoError(t, err)
	_, err = s.DeleteAllVotes(ctx)
	require.NoError(t, err)

	restored := m.Restore(ctx, res.Path, prompt.No)
	require.True(t, restored.OK(), restored.String())
	assert.Empty(t, restored.SafetyBackup, "empty store needs no safety backup")
	assert.Equal(t, 2, restored.PollsRestored)
	assert.Equal(t, 2, restored.VotesRestored)

	gotPolls, err := s.AllPolls(ctx)
	require.NoError(t, err)
	gotVotes, err := s.AllVotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, polls, gotPolls)
	assert.Equal(t, votes, gotVotes)
}

func TestSnapshotFileIsPlainJSON(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	polls, votes := fixtures()
	storetest.Seed(t, ctx, s, polls, votes)
	m := newManager(t, s, 10)

	res, err := m.Create(ctx)
	require.NoError(t, err)
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"_id": "`+polls[0].ID.Hex()+`"`)
	assert.Contains(t, string(data), `"createdAt": "2025-03-01T12:00:00Z"`)
	assert.Contains(t, string(data), `"pollId": "`+polls[0].ID.Hex()+`"`)
	assert.Contains(t, string(data), "\n  \"polls\": [")
}

func TestTextualExtrasAreStrings(t *testing.T) {
	oid := bson.NewObjectID()
	when := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	got := backup.TextualMap(bson.M{
		"ref":    oid,
		"at":     bson.NewDateTimeFromTime(when),
		"count":  int32(4),
		"nested": bson.D{{Key: "ids", Value: bson.A{oid}}},
	})
	assert.Equal(t, oid.Hex(), got["ref"])
	assert.Equal(t, "2025-01-02T03:04:05Z", got["at"])
	assert.Equal(t, int64(4), got["count"])
	assert.Equal(t, map[string]any{"ids": []any{oid.Hex()}}, got["nested"])
}

func TestCreateAddsSuffixWithinSameSecond(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 4, 2, 9, 30, 0, 0, time.Local)
	m := newManager(t, memory.New(), 10, backup.WithClock(func() time.Time { return fixed }))

	first, err := m.Create(ctx)
	require.NoError(t, err)
	second, err := m.Create(ctx)
	require.NoError(t, err)
	third, err := m.Create(ctx)
	require.NoError(t, err)

	assert.Equal(t, "partivotes_backup_20250402_093000.json", first.Name)
	assert.Equal(t, "partivotes_backup_20250402_093000_1.json", second.Name)
	assert.Equal(t, "partivotes_backup_20250402_093000_2.json", third.Name)
	assert.True(t, fixed.Equal(backup.ParseCreated(second.Name)))
}

func TestCreateContinuesAfterHighestSuffix(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 4, 2, 9, 30, 0, 0, time.Local)
	m := newManager(t, memory.New(), 10, backup.WithClock(func() time.Time { return fixed }))
	require.NoError(t, os.MkdirAll(m.Dir(), 0o755))
	// One-second mtime resolution leaves every earlier backup tied.
	mtime := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	writeBackup(t, m.Dir(), "partivotes_backup_20250402_093000.json", mtime)
	for i := 1; i <= 10; i++ {
		writeBackup(t, m.Dir(), fmt.Sprintf("partivotes_backup_20250402_093000_%d.json", i), mtime)
	}

	res, err := m.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "partivotes_backup_20250402_093000_11.json", res.Name)
	assert.NoFileExists(t, filepath.Join(m.Dir(), "partivotes_backup_20250402_093000.json"))
	assert.NoFileExists(t, filepath.Join(m.Dir(), "partivotes_backup_20250402_093000_1.json"))
	assert.FileExists(t, filepath.Join(m.Dir(), "partivotes_backup_20250402_093000_10.json"))

	files, err := m.List()
	require.NoError(t, err)
	require.Len(t, files, 10)
	assert.Equal(t, res.Name, files[0].Name)
	assert.Equal(t, "partivotes_backup_20250402_093000_10.json", files[1].Name)
	assert.Equal(t, "partivotes_backup_20250402_093000_2.json", files[9].Name)

	next, err := m.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "partivotes_backup_20250402_093000_12.json", next.Name)
	assert.NoFileExists(t, filepath.Join(m.Dir(), "partivotes_backup_20250402_093000_2.json"))
}

func writeBackup(t *testing.T, dir, name string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(`{"polls":[],"votes":[]}`), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestRotateRemovesOldestBeyondRetention(t *testing.T) {
	m := newManager(t, memory.New(), 3)
	require.NoError(t, os.MkdirAll(m.Dir(), 0o755))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// Names deliberately disagree with mtimes: retention follows mtime.
	writeBackup(t, m.Dir(), "partivotes_backup_20250105_000000.json", base)
	writeBackup(t, m.Dir(), "partivotes_backup_20250104_000000.json", base.Add(time.Hour))
	writeBackup(t, m.Dir(), "partivotes_backup_20250103_000000.json", base.Add(2*time.Hour))
	writeBackup(t, m.Dir(), "partivotes_backup_20250102_000000.json", base.Add(3*time.Hour))
	writeBackup(t, m.Dir(), "partivotes_backup_20250101_000000.json", base.Add(4*time.Hour))
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), "notes.txt"), []byte("keep"), 0o644))

	removed, err := m.Rotate()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(m.Dir(), "partivotes_backup_20250105_000000.json"),
		filepath.Join(m.Dir(), "partivotes_backup_20250104_000000.json"),
	}, removed)

	files, err := m.List()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "partivotes_backup_20250101_000000.json", files[0].Name, "newest mtime first")
	assert.FileExists(t, filepath.Join(m.Dir(), "notes.txt"))

	removed, err = m.Rotate()
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestCreateKeepsAtMostRetentionCount(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memory.New(), 2)
	for i := 0; i < 5; i++ {
		_, err := m.Create(ctx)
		require.NoError(t, err)
	}
	files, err := m.List()
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestListMissingDirectory(t *testing.T) {
	m := newManager(t, memory.New(), 10)
	files, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestParseCreated(t *testing.T) {
	want := time.Date(2024, 12, 31, 23, 59, 58, 0, time.Local)
	assert.True(t, want.Equal(backup.ParseCreated("partivotes_backup_20241231_235958.json")))
	assert.True(t, backup.ParseCreated("partivotes_backup_latest.json").IsZero())
	assert.False(t, backup.IsBackupName("polls_export_20241231_235958.csv"))
}

func TestRestoreMissingFile(t *testing.T) {
	m := newManager(t, memory.New(), 10)
	res := m.Restore(context.Background(), filepath.Join(t.TempDir(), "nope.json"), prompt.Yes)
	assert.Equal(t, model.Failure, res.Status)
	var nf *registrystore.NotFoundError
	assert.True(t, errors.As(res.Err, &nf))
}

func TestRestoreRejectsMalformedFiles(t *testing.T) {
	cases := map[string]string{
		"not json":      `polls: []`,
		"missing votes": `{"polls": []}`,
		"missing polls": `{"votes": []}`,
		"wrong shape":   `{"polls": {"a": 1}, "votes": []}`,
		"bad poll id":   `{"polls": [{"_id": "xyz", "title": "t"}], "votes": []}`,
		"bad vote ref":  `{"polls": [], "votes": [{"_id": "65f0c0ffee0000000000000a", "pollId": "short"}]}`,
		"bad date":      `{"polls": [{"_id": "65f0c0ffee0000000000000a", "createdAt": "yesterday"}], "votes": []}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := memory.New()
			polls, votes := fixtures()
			storetest.Seed(t, ctx, s, polls, votes)
			m := newManager(t, s, 10)
			path := filepath.Join(t.TempDir(), "bad.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			res := m.Restore(ctx, path, prompt.Yes)
			assert.Equal(t, model.Failure, res.Status)
			var mb *backup.MalformedBackupError
			assert.True(t, errors.As(res.Err, &mb), "got %v", res.Err)

			n, err := s.CountPolls(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 2, n, "store must be untouched")
			files, err := m.List()
			require.NoError(t, err)
			assert.Empty(t, files, "no safety backup for a rejected file")
		})
	}
}

// isoformatBackup is a backup as written by the earlier PartiVotes tooling,
// with zone-less ISO 8601 timestamps and microsecond fractions.
const isoformatBackup = `{
  "polls": [
    {
      "_id": "65f0c0ffee0000000000000a",
      "title": "Treasury allocation",
      "description": "Q2 budget",
      "creator": "addr1_creator",
      "options": [
        {"_id": "65f0c0ffee0000000000000b", "text": "Yes", "votes": 1},
        {"_id": "65f0c0ffee0000000000000c", "text": "No", "votes": 0}
      ],
      "startDate": "2025-03-01T12:00:00",
      "endDate": "2025-03-04T12:00:00.123000",
      "type": "SINGLE_CHOICE",
      "maxSelections": 1,
      "status": "ACTIVE",
      "network": "testnet",
      "totalVotes": 1,
      "createdAt": "2025-03-01T12:00:00",
      "updatedAt": "2025-03-01T12:30:45.500000",
      "__v": 0
    }
  ],
  "votes": [
    {
      "_id": "65f0c0ffee0000000000000d",
      "pollId": "65f0c0ffee0000000000000a",
      "voter": "addr1_alice",
      "option": "Yes",
      "timestamp": "2025-03-01T13:00:00.250000",
      "txId": "tx1",
      "type": "Public",
      "network": "testnet",
      "__v": 0
    }
  ]
}`

func TestRestoreAcceptsZonelessTimestamps(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	m := newManager(t, s, 10)
	path := filepath.Join(t.TempDir(), "partivotes_backup_20250301_120000.json")
	require.NoError(t, os.WriteFile(path, []byte(isoformatBackup), 0o644))

	res := m.Restore(ctx, path, prompt.No)
	require.True(t, res.OK(), res.String())
	assert.Equal(t, 1, res.PollsRestored)
	assert.Equal(t, 1, res.VotesRestored)

	polls, err := s.AllPolls(ctx)
	require.NoError(t, err)
	require.Len(t, polls, 1)
	p := polls[0]
	assert.Equal(t, "Treasury allocation", p.Title)
	require.NotNil(t, p.CreatedAt)
	assert.True(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Equal(*p.CreatedAt))
	require.NotNil(t, p.EndDate)
	assert.True(t, time.Date(2025, 3, 4, 12, 0, 0, 123000000, time.UTC).Equal(*p.EndDate))
	require.NotNil(t, p.UpdatedAt)
	assert.True(t, time.Date(2025, 3, 1, 12, 30, 45, 500000000, time.UTC).Equal(*p.UpdatedAt))
	require.NotNil(t, p.Version)
	assert.Zero(t, *p.Version)

	votes, err := s.AllVotes(ctx)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, p.ID, votes[0].PollID)
	require.NotNil(t, votes[0].Timestamp)
	assert.True(t, time.Date(2025, 3, 1, 13, 0, 0, 250000000, time.UTC).Equal(*votes[0].Timestamp))
}

func TestRestoreDeclinedLeavesDataInPlace(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	polls, votes := fixtures()
	storetest.Seed(t, ctx, s, polls, votes)
	m := newManager(t, s, 10)
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"polls": [], "votes": []}`), 0o644))

	var asked string
	res := m.Restore(ctx, path, prompt.ConfirmFunc(func(q string) bool {
		asked = q
		return false
	}))
	assert.Equal(t, model.Failure, res.Status)
	assert.Equal(t, "cancelled", res.Detail)
	assert.Contains(t, asked, "2 polls and 2 votes")

	n, err := s.CountVotes(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRestoreTakesSafetyBackupFirst(t *testing.T) {
	ctx := context.Background()
	source := memory.New()
	incoming := storetest.NewPoll("Incoming", 0)
	storetest.Seed(t, ctx, source, []model.Poll{incoming}, nil)
	src, err := newManager(t, source, 10).Create(ctx)
	require.NoError(t, err)

	s := memory.New()
	polls, votes := fixtures()
	storetest.Seed(t, ctx, s, polls, votes)
	m := newManager(t, s, 10)

	res := m.Restore(ctx, src.Path, prompt.Yes)
	require.True(t, res.OK(), res.String())
	require.NotEmpty(t, res.SafetyBackup)

	data, err := os.ReadFile(res.SafetyBackup)
	require.NoError(t, err)
	snap, err := backup.DecodeSnapshot(res.SafetyBackup, data)
	require.NoError(t, err)
	assert.Len(t, snap.Polls, 2)
	assert.Len(t, snap.Votes, 2)

	got, err := s.AllPolls(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, incoming.ID, got[0].ID)
	n, err := s.CountVotes(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRestoreAbortsWhenSafetyBackupFails(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	polls, votes := fixtures()
	storetest.Seed(t, ctx, inner, polls, votes)
	s := storetest.NewFaulty(inner)
	s.Fail["AllPolls"] = errors.New("cursor killed")
	m := newManager(t, s, 10)
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"polls": [], "votes": []}`), 0o644))

	res := m.Restore(ctx, path, prompt.Yes)
	assert.Equal(t, model.Failure, res.Status)
	assert.ErrorContains(t, res.Err, "cursor killed")
	n, err := inner.CountPolls(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRestorePartialFailureNamesSafetyBackup(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	polls, votes := fixtures()
	storetest.Seed(t, ctx, inner, polls, votes)
	s := storetest.NewFaulty(inner)
	m := newManager(t, s, 10)
	src, err := m.Create(ctx)
	require.NoError(t, err)

	s.Fail["InsertVotes"] = errors.New("write concern")
	res := m.Restore(ctx, src.Path, prompt.Yes)
	assert.Equal(t, model.PartialFailure, res.Status)
	assert.Contains(t, res.Detail, res.SafetyBackup)
	assert.Equal(t, 2, res.PollsRestored)
	assert.Zero(t, res.VotesRestored)
}

type fakeS3 struct {
	key  string
	body string
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = *in.Key
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestS3MirrorUploadsUnderPrefix(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{}
	m := newManager(t, memory.New(), 10, backup.WithUploader(backup.NewS3UploaderWithClient(fake, "bucket", "/nightly/")))

	res, err := m.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "nightly/"+res.Name, fake.key)
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, string(data), fake.body)
}

func TestS3MirrorFailureKeepsLocalBackup(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{err: errors.New("access denied")}
	m := newManager(t, memory.New(), 10, backup.WithUploader(backup.NewS3UploaderWithClient(fake, "bucket", "")))

	res, err := m.Create(ctx)
	require.NoError(t, err)
	assert.FileExists(t, res.Path)
}

func TestNewS3UploaderDisabledWithoutBucket(t *testing.T) {
	cfg := config.DefaultConfig()
	u, err := backup.NewS3Uploader(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestS3MirrorAgainstLocalStack(t *testing.T) {
	bucket := tests3.StartS3(t)
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.BackupDir = filepath.Join(t.TempDir(), "backups")
	cfg.BackupS3Bucket = bucket.Name
	cfg.BackupS3Prefix = "dbmanager"
	cfg.BackupS3PathStyle = true
	up, err := backup.NewS3Uploader(ctx, &cfg)
	require.NoError(t, err)
	require.NotNil(t, up)

	s := memory.New()
	polls, votes := fixtures()
	storetest.Seed(t, ctx, s, polls, votes)
	res, err := backup.NewManager(s, &cfg, backup.WithUploader(up)).Create(ctx)
	require.NoError(t, err)

	obj, err := bucket.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket.Name),
		Key:    aws.String("dbmanager/" + res.Name),
	})
	require.NoError(t, err)
	defer obj.Body.Close()
	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	snap, err := backup.DecodeSnapshot(res.Name, body)
	require.NoError(t, err)
	assert.Len(t, snap.Polls, 2)
}

package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/isoapp/iso_server/internal/logging"
	"github.com/isoapp/iso_server/internal/market"
	"github.com/isoapp/iso_server/internal/verification"
)

func populatedStore(t *testing.T) *market.Store {
	t.Helper()
	s := market.NewStore(market.Data{PinnedPosts: []string{"pinned-1"}}, verification.StaticProvider{})
	for _, u := range []market.User{
		{ID: "u1", Token: "T1", PhoneNumber: "+15551234567", Location: [2]float64{40.7, -74.0}, Karma: 4, Posts: []string{}, Verified: "true"},
		{ID: "u2", Token: "T2", PhoneNumber: "+15550000002", Posts: []string{}, Verified: "https://verify.twilio.com/v2/Services/VA/Verifications/VE"},
		{ID: "u3", Token: "T3", PhoneNumber: "+15550000003", Posts: []string{}},
	} {
		if err := s.AddUser(u); err != nil {
			t.Fatalf("add user: %v", err)
		}
	}
	couch := s.AddPost(market.NewPost{Title: "Couch", Category: market.CategoryOSI, OwnerID: "u1", TimeType: market.TimeItemPermanent, Tags: []string{"furniture"}, LocationString: "Brooklyn"})
	s.AddPost(market.NewPost{Title: "Ride to JFK", Category: market.CategoryISO, OwnerID: "u2", TimeType: market.TimeServiceNow})
	s.AddPost(market.NewPost{Title: "Drill", OwnerID: "u3", TimeType: market.TimeItemLoan})
	if _, err := s.ClaimPost(couch.ID, market.Credentials{UserID: "u2", Token: "T2"}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	return s
}

func TestRoundTripPreservesState(t *testing.T) {
	store := populatedStore(t)
	sink := NewFileSink(filepath.Join(t.TempDir(), "db.json"))
	snap := New(context.Background(), store, sink, time.Minute, logging.Discard())

	if err := snap.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := Load(context.Background(), sink, logging.Discard())
	want := store.View()
	if len(restored.Users) != 3 || len(restored.Feed) != 3 {
		t.Fatalf("expected 3 users and 3 posts, got %d/%d", len(restored.Users), len(restored.Feed))
	}
	if !reflect.DeepEqual(want, restored) {
		t.Fatalf("round trip mismatch\nwant %+v\ngot  %+v", want, restored)
	}

	reloaded := market.NewStore(restored, nil)
	if !reflect.DeepEqual(reloaded.View(), want) {
		t.Fatalf("store rebuilt from snapshot differs")
	}
}

func TestDecodeToleratesTrailingBytes(t *testing.T) {
	doc := []byte(`{"feed":[],"users":{"u1":{"uuid":"u1","token":"T1","phone_number":"+15551234567","current_location":[0,0],"karma":0,"posts":[],"verified":""}},"pinned_posts":[]}
}}} leftover from a longer previous snapshot`)

	data, err := Decode(doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.Users["u1"].Token != "T1" {
		t.Fatalf("unexpected users %+v", data.Users)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not json")); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestLoadMissingOrCorruptYieldsEmpty(t *testing.T) {
	dir := t.TempDir()

	missing := Load(context.Background(), NewFileSink(filepath.Join(dir, "absent.json")), logging.Discard())
	if len(missing.Users) != 0 || len(missing.Feed) != 0 {
		t.Fatalf("expected empty data for missing file")
	}

	corruptPath := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corruptPath, []byte("{\"feed\": [tru"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	corrupt := Load(context.Background(), NewFileSink(corruptPath), logging.Discard())
	if len(corrupt.Users) != 0 || len(corrupt.Feed) != 0 {
		t.Fatalf("expected empty data for corrupt file")
	}
}

func TestFileSinkOverwritesWholesale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	sink := NewFileSink(path)
	ctx := context.Background()

	if err := sink.Save(ctx, []byte(`{"feed":[],"users":{},"pinned_posts":["a-much-longer-document-than-the-next-one"]}`)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := sink.Save(ctx, []byte(`{}`)); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != `{}` {
		t.Fatalf("expected wholesale rewrite, got %q", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %d entries", len(entries))
	}
}

type memorySink struct {
	mu    sync.Mutex
	doc   []byte
	saves int
	err   error
}

func (m *memorySink) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return nil, ErrNoSnapshot
	}
	return m.doc, nil
}

func (m *memorySink) Save(_ context.Context, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.doc = append([]byte(nil), doc...)
	m.saves++
	return nil
}

func (m *memorySink) String() string { return "memory" }

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func TestSaveFailureKeepsServing(t *testing.T) {
	store := populatedStore(t)
	sink := &memorySink{err: errors.New("disk full")}
	snap := New(context.Background(), store, sink, time.Minute, logging.Discard())

	if err := snap.Save(context.Background()); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if users, posts := store.Stats(); users != 3 || posts != 3 {
		t.Fatalf("store changed after failed save: %d/%d", users, posts)
	}
	store.AddPost(market.NewPost{Title: "still writable"})
}

func TestSnapshotterTicksAndFinalSave(t *testing.T) {
	store := populatedStore(t)
	sink := &memorySink{}
	snap := New(context.Background(), store, sink, time.Second, logging.Discard())
	if snap.Spec() != "@every 1s" {
		t.Fatalf("unexpected spec %q", snap.Spec())
	}

	if err := snap.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if sink.count() == 0 {
		t.Fatalf("expected a scheduled save")
	}

	post := store.AddPost(market.NewPost{Title: "after tick"})
	if err := snap.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	data := Load(context.Background(), sink, logging.Discard())
	if _, err := data.PostByID(post.ID); err != nil {
		t.Fatalf("final save missed latest post: %v", err)
	}
}

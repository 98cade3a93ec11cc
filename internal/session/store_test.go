package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dochelper/internal/edit"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type removeLog struct {
	paths []string
}

func (r *removeLog) Remove(path string) error {
	r.paths = append(r.paths, path)
	return nil
}

func newTestStore() (*Store, *fakeClock, *removeLog) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rm := &removeLog{}
	s := NewStore(
		Config{Warning: 300 * time.Second, Expire: 420 * time.Second, Idle: 600 * time.Second},
		WithClock(clock.Now),
		WithRemover(rm.Remove),
	)
	return s, clock, rm
}

func TestCreateAndGet(t *testing.T) {
	s, clock, _ := newTestStore()
	s.Create("alice", "edit")

	got, ok := s.Get("alice")
	if !ok {
		t.Fatal("session missing after create")
	}
	if got.Mode != "edit" || got.WarningSent || !got.LastActivity.Equal(clock.Now()) {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if _, ok := s.Get("nobody"); ok {
		t.Fatal("absent user reported present")
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
}

func TestCreateReplacesAndDisposesArtifact(t *testing.T) {
	s, _, rm := newTestStore()
	s.Create("alice", "edit")
	s.SetFile("alice", "/tmp/a.docx", "a.docx")

	s.Create("alice", "analyze")
	if len(rm.paths) != 1 || rm.paths[0] != "/tmp/a.docx" {
		t.Fatalf("removed = %v, want the replaced artifact", rm.paths)
	}
	if s.HasFile("alice") {
		t.Fatal("new session should start without a file")
	}
	got, _ := s.Get("alice")
	if got.Mode != "analyze" {
		t.Fatalf("mode = %q", got.Mode)
	}
}

func TestUpdateTouchesActivityAndResetsWarning(t *testing.T) {
	s, clock, _ := newTestStore()
	s.Create("alice", "edit")
	s.MarkWarningSent("alice")

	clock.Advance(100 * time.Second)
	s.Update("alice", Mode("analyze"), FindText("fox"))

	got, _ := s.Get("alice")
	if got.Mode != "analyze" || got.FindText != "fox" {
		t.Fatalf("fields not applied: %+v", got)
	}
	if got.WarningSent {
		t.Fatal("update must reset warning_sent")
	}
	if !got.LastActivity.Equal(clock.Now()) {
		t.Fatal("update must refresh last_activity")
	}
	if got := s.TimeoutRemaining("alice"); got != 600*time.Second {
		t.Fatalf("remaining = %v, want full idle threshold", got)
	}
}

func TestUpdateFileDisposesPrior(t *testing.T) {
	s, _, rm := newTestStore()
	s.Create("alice", "edit")
	s.SetFile("alice", "/tmp/v1.docx", "report.docx")

	s.UpdateFile("alice", "/tmp/v2.docx")
	if len(rm.paths) != 1 || rm.paths[0] != "/tmp/v1.docx" {
		t.Fatalf("removed = %v, want prior artifact", rm.paths)
	}
	if got := s.FilePath("alice"); got != "/tmp/v2.docx" {
		t.Fatalf("file path = %q", got)
	}
	if got := s.OriginalName("alice"); got != "report.docx" {
		t.Fatalf("original name = %q", got)
	}

	s.UpdateFile("alice", "/tmp/v2.docx")
	if len(rm.paths) != 1 {
		t.Fatalf("same-path update removed something: %v", rm.paths)
	}
}

func TestSetFileDisposesReplacedUpload(t *testing.T) {
	s, _, rm := newTestStore()
	s.Create("alice", "edit")
	s.SetFile("alice", "/tmp/first.docx", "first.docx")

	s.SetFile("alice", "/tmp/second.docx", "second.docx")
	if len(rm.paths) != 1 || rm.paths[0] != "/tmp/first.docx" {
		t.Fatalf("removed = %v, want the replaced upload", rm.paths)
	}
	if got := s.FilePath("alice"); got != "/tmp/second.docx" {
		t.Fatalf("file path = %q", got)
	}
	if got := s.OriginalName("alice"); got != "second.docx" {
		t.Fatalf("original name = %q", got)
	}

	s.Cleanup("alice")
	if len(rm.paths) != 2 || rm.paths[1] != "/tmp/second.docx" {
		t.Fatalf("removed = %v, want only the live artifact on cleanup", rm.paths)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	s, _, rm := newTestStore()
	s.Create("alice", "edit")
	s.SetFile("alice", "/tmp/doc.docx", "doc.docx")

	s.Cleanup("alice")
	if s.IsActive("alice") {
		t.Fatal("session still active after cleanup")
	}
	if len(rm.paths) != 1 || rm.paths[0] != "/tmp/doc.docx" {
		t.Fatalf("removed = %v", rm.paths)
	}

	s.Cleanup("alice")
	s.Cleanup("never-existed")
	if len(rm.paths) != 1 {
		t.Fatalf("repeat cleanup removed again: %v", rm.paths)
	}
}

func TestCleanupRemovesArtifactFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := NewStore(Config{Warning: time.Minute, Expire: 2 * time.Minute, Idle: 3 * time.Minute})
	s.Create("alice", "edit")
	s.SetFile("alice", path, "doc.docx")

	s.Cleanup("alice")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("artifact still on disk: %v", err)
	}
}

func TestTwoTierTimeouts(t *testing.T) {
	s, clock, _ := newTestStore()
	s.Create("alice", "edit")
	if got := s.TimeoutRemaining("alice"); got != 600*time.Second {
		t.Fatalf("no-file remaining = %v, want 600s", got)
	}

	s.SetFile("alice", "/tmp/doc.docx", "doc.docx")
	if got := s.TimeoutRemaining("alice"); got != 420*time.Second {
		t.Fatalf("with-file remaining = %v, want 420s", got)
	}

	clock.Advance(100 * time.Second)
	if got := s.TimeoutRemaining("alice"); got != 320*time.Second {
		t.Fatalf("remaining = %v, want 320s", got)
	}
	if got := s.TimeoutRemaining("nobody"); got != 0 {
		t.Fatalf("absent remaining = %v, want 0", got)
	}
}

func TestSweepWarningsTimingAndMarking(t *testing.T) {
	s, clock, _ := newTestStore()
	s.Create("alice", "edit")
	s.SetChannel("alice", "chan-1")
	s.SetFile("alice", "/tmp/doc.docx", "doc.docx")

	clock.Advance(299 * time.Second)
	if got := s.SweepWarnings(); len(got) != 0 {
		t.Fatalf("warned too early: %v", got)
	}

	clock.Advance(1 * time.Second)
	got := s.SweepWarnings()
	if len(got) != 1 {
		t.Fatalf("targets = %v, want one", got)
	}
	if got[0].User != "alice" || got[0].Channel != "chan-1" {
		t.Fatalf("target = %+v", got[0])
	}
	if got[0].Remaining != 120*time.Second {
		t.Fatalf("remaining = %v, want 120s", got[0].Remaining)
	}
	if !s.IsWarningSent("alice") {
		t.Fatal("sweep must mark the warning")
	}
	if again := s.SweepWarnings(); len(again) != 0 {
		t.Fatalf("warned twice: %v", again)
	}
}

func TestSweepWarningsAfterTouchNeedsFullInterval(t *testing.T) {
	s, clock, _ := newTestStore()
	s.Create("alice", "edit")
	s.SetChannel("alice", "chan-1")
	s.SetFile("alice", "/tmp/doc.docx", "doc.docx")

	clock.Advance(200 * time.Second)
	s.Update("alice")

	clock.Advance(250 * time.Second)
	if got := s.SweepWarnings(); len(got) != 0 {
		t.Fatalf("warned before a full warning interval of idleness: %v", got)
	}
	clock.Advance(50 * time.Second)
	if got := s.SweepWarnings(); len(got) != 1 {
		t.Fatalf("targets = %v, want one", got)
	}
}

func TestSweepWarningsSkipsChannellessAndExpired(t *testing.T) {
	s, clock, _ := newTestStore()
	s.Create("bob", "edit")

	clock.Advance(300 * time.Second)
	if got := s.SweepWarnings(); len(got) != 0 {
		t.Fatalf("channel-less session warned: %v", got)
	}

	s.Create("alice", "edit")
	s.SetChannel("alice", "chan-1")
	s.SetFile("alice", "/tmp/doc.docx", "doc.docx")
	clock.Advance(500 * time.Second)
	if got := s.SweepWarnings(); len(got) != 0 {
		t.Fatalf("already-expired session warned: %v", got)
	}
}

func TestSweepExpirationsTwoTier(t *testing.T) {
	s, clock, _ := newTestStore()
	s.Create("alice", "edit")
	s.SetChannel("alice", "chan-1")
	s.SetFile("alice", "/tmp/doc.docx", "doc.docx")
	s.Create("bob", "edit")

	clock.Advance(420 * time.Second)
	got := s.SweepExpirations()
	if len(got) != 1 || got[0].User != "alice" || got[0].Channel != "chan-1" {
		t.Fatalf("targets = %v, want alice only", got)
	}
	if !s.IsActive("alice") {
		t.Fatal("expiry sweep must not clean up by itself")
	}

	clock.Advance(180 * time.Second)
	got = s.SweepExpirations()
	if len(got) != 2 || got[0].User != "alice" || got[1].User != "bob" {
		t.Fatalf("targets = %v, want alice and bob", got)
	}
	if got[1].Channel != "" {
		t.Fatalf("bob has no channel, got %q", got[1].Channel)
	}
}

func TestMarkWarningSentDoesNotTouchActivity(t *testing.T) {
	s, clock, _ := newTestStore()
	s.Create("alice", "edit")
	clock.Advance(100 * time.Second)
	s.MarkWarningSent("alice")
	if got := s.TimeoutRemaining("alice"); got != 500*time.Second {
		t.Fatalf("remaining = %v, want 500s", got)
	}
}

func TestSetChannelDoesNotTouchActivity(t *testing.T) {
	s, clock, _ := newTestStore()
	s.Create("alice", "edit")
	clock.Advance(100 * time.Second)
	s.SetChannel("alice", "chan-9")
	if got := s.TimeoutRemaining("alice"); got != 500*time.Second {
		t.Fatalf("remaining = %v, want 500s", got)
	}
	got, _ := s.Get("alice")
	if got.Channel != "chan-9" {
		t.Fatalf("channel = %q", got.Channel)
	}
}

func TestPendingFixesCopies(t *testing.T) {
	s, _, _ := newTestStore()
	s.Create("alice", "fix")

	in := []edit.Fix{{Search: "a", Replace: "b"}}
	s.SetPendingFixes("alice", in)
	in[0].Search = "mutated"

	got := s.PendingFixes("alice")
	if len(got) != 1 || got[0].Search != "a" {
		t.Fatalf("stored fixes aliased caller slice: %v", got)
	}
	got[0].Replace = "mutated"
	if again := s.PendingFixes("alice"); again[0].Replace != "b" {
		t.Fatalf("returned fixes aliased store: %v", again)
	}

	s.ClearPendingFixes("alice")
	if got := s.PendingFixes("alice"); len(got) != 0 {
		t.Fatalf("fixes after clear = %v", got)
	}
}

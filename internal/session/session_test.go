package session

import (
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/pkg/lifecycle"
)

type fakeArtifact struct {
	releases atomic.Int32
}

func (f *fakeArtifact) ContentType() string { return "audio/wav" }
func (f *fakeArtifact) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("RIFF")), nil
}
func (f *fakeArtifact) Release() error {
	f.releases.Add(1)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newManager() (*Manager, *clock) {
	c := &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(30*time.Minute, logger.Nop(), nil)
	m.now = c.Now
	return m, c
}

func create(t *testing.T, m *Manager) (string, *fakeArtifact, *fakeArtifact) {
	t.Helper()
	a, b := &fakeArtifact{}, &fakeArtifact{}
	id, err := m.CreateSession(Spec{
		Input:      "hello there",
		Category:   candidate.CategoryTTS,
		VoterID:    "u1",
		Candidates: [2]string{"cand-a", "cand-b"},
		Artifacts:  [2]Artifact{a, b},
	})
	if err != nil {
		t.Fatal(err)
	}
	return id, a, b
}

func TestCreateSessionValidates(t *testing.T) {
	m, _ := newManager()
	art := &fakeArtifact{}
	tests := []struct {
		name string
		spec Spec
	}{
		{"same candidate", Spec{Input: "x", Candidates: [2]string{"a", "a"}, Artifacts: [2]Artifact{art, art}}},
		{"missing candidate", Spec{Input: "x", Candidates: [2]string{"a", ""}, Artifacts: [2]Artifact{art, art}}},
		{"missing artifact", Spec{Input: "x", Candidates: [2]string{"a", "b"}, Artifacts: [2]Artifact{art, nil}}},
		{"blank input", Spec{Input: " ", Candidates: [2]string{"a", "b"}, Artifacts: [2]Artifact{art, art}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.CreateSession(tt.spec); !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("err = %v, want invalid input", err)
			}
		})
	}
	if m.Active() != 0 {
		t.Errorf("Active() = %d, want 0", m.Active())
	}
}

func TestSubmitVoteResolvesSides(t *testing.T) {
	m, _ := newManager()
	id, _, _ := create(t, m)

	ballot, err := m.SubmitVote(id, SideB)
	if err != nil {
		t.Fatal(err)
	}
	if ballot.WinnerID != "cand-b" || ballot.LoserID != "cand-a" || ballot.VoterID != "u1" || ballot.Input != "hello there" {
		t.Errorf("ballot = %+v", ballot)
	}
	ballot.Commit()

	if _, err := m.SubmitVote(id, SideA); !errors.Is(err, apperr.ErrAlreadyVoted) {
		t.Errorf("second vote err = %v, want already voted", err)
	}
	// artifacts stay reachable after the vote
	if _, err := m.ResolveArtifact(id, SideA); err != nil {
		t.Errorf("ResolveArtifact after vote: %v", err)
	}
}

func TestUnknownSessionAndSide(t *testing.T) {
	m, _ := newManager()
	id, _, _ := create(t, m)

	if _, err := m.SubmitVote("nope", SideA); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown session err = %v", err)
	}
	if _, err := m.SubmitVote(id, Side("c")); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad side err = %v", err)
	}
	if _, err := m.ResolveArtifact(id, Side("")); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad side artifact err = %v", err)
	}
	if _, err := ParseSide("b"); err != nil {
		t.Errorf("ParseSide(b) = %v", err)
	}
}

func TestConcurrentDoubleSubmit(t *testing.T) {
	m, _ := newManager()
	for range 20 {
		id, _, _ := create(t, m)

		const workers = 8
		var ok, rejected atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				side := SideA
				if i%2 == 1 {
					side = SideB
				}
				b, err := m.SubmitVote(id, side)
				switch {
				case err == nil:
					b.Commit()
					ok.Add(1)
				case errors.Is(err, apperr.ErrAlreadyVoted):
					rejected.Add(1)
				default:
					t.Errorf("unexpected err: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		if ok.Load() != 1 || rejected.Load() != workers-1 {
			t.Fatalf("ok = %d, rejected = %d", ok.Load(), rejected.Load())
		}
	}
}

func TestRollbackReopensSession(t *testing.T) {
	m, _ := newManager()
	id, _, _ := create(t, m)

	b, err := m.SubmitVote(id, SideA)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitVote(id, SideA); !errors.Is(err, apperr.ErrAlreadyVoted) {
		t.Fatalf("outstanding ballot err = %v", err)
	}
	b.RollbackUnlessCommitted()

	b2, err := m.SubmitVote(id, SideB)
	if err != nil {
		t.Fatalf("vote after rollback: %v", err)
	}
	b2.Commit()
	b2.RollbackUnlessCommitted()
	if _, err := m.SubmitVote(id, SideA); !errors.Is(err, apperr.ErrAlreadyVoted) {
		t.Errorf("rollback after commit reopened the session: %v", err)
	}
}

func TestExpiredSessionRejectsWithoutSweep(t *testing.T) {
	m, c := newManager()
	id, a, b := create(t, m)
	id2, _, _ := create(t, m)

	c.Advance(30 * time.Minute)

	if _, err := m.SubmitVote(id, SideA); !errors.Is(err, apperr.ErrExpired) {
		t.Fatalf("err = %v, want expired", err)
	}
	if a.releases.Load() != 1 || b.releases.Load() != 1 {
		t.Errorf("releases = %d/%d, want 1/1", a.releases.Load(), b.releases.Load())
	}
	// auto-destroyed: the id is gone now
	if _, err := m.SubmitVote(id, SideA); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("after auto-destroy err = %v, want not found", err)
	}
	if _, err := m.ResolveArtifact(id2, SideA); !errors.Is(err, apperr.ErrExpired) {
		t.Errorf("ResolveArtifact err = %v, want expired", err)
	}
	if m.Active() != 0 {
		t.Errorf("Active() = %d, want 0", m.Active())
	}
}

func TestExpiredVotedSessionReportsExpired(t *testing.T) {
	m, c := newManager()
	id, _, _ := create(t, m)
	b, _ := m.SubmitVote(id, SideA)
	b.Commit()

	c.Advance(time.Hour)
	if _, err := m.SubmitVote(id, SideA); !errors.Is(err, apperr.ErrExpired) {
		t.Errorf("err = %v, want expired before already voted", err)
	}
}

func TestSweepReleasesExactlyOnce(t *testing.T) {
	m, c := newManager()
	type pair struct{ a, b *fakeArtifact }
	var old []pair
	for range 10 {
		_, a, b := create(t, m)
		old = append(old, pair{a, b})
	}
	c.Advance(20 * time.Minute)
	freshID, fa, _ := create(t, m)
	c.Advance(10 * time.Minute)

	var swept atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			swept.Add(int32(m.Sweep(c.Now())))
		}()
	}
	wg.Wait()

	if swept.Load() != 10 {
		t.Errorf("swept = %d, want 10", swept.Load())
	}
	for i, p := range old {
		if p.a.releases.Load() != 1 || p.b.releases.Load() != 1 {
			t.Errorf("session %d releases = %d/%d", i, p.a.releases.Load(), p.b.releases.Load())
		}
	}
	if fa.releases.Load() != 0 || m.Active() != 1 {
		t.Errorf("fresh session touched: releases=%d active=%d", fa.releases.Load(), m.Active())
	}
	if m.Sweep(c.Now()) != 0 {
		t.Error("second sweep removed sessions")
	}

	m.Destroy(freshID)
	m.Destroy(freshID)
	if fa.releases.Load() != 1 {
		t.Errorf("destroy twice released %d times", fa.releases.Load())
	}
}

func TestListHidesCandidates(t *testing.T) {
	m, c := newManager()
	first, _, _ := create(t, m)
	c.Advance(time.Second)
	create(t, m)
	b, _ := m.SubmitVote(first, SideA)
	b.Commit()

	list := m.List()
	if len(list) != 2 || list[0].ID != first || list[0].State != "voted" || list[1].State != "created" {
		t.Errorf("List() = %+v", list)
	}
}

func TestSweeperStopsOnShutdown(t *testing.T) {
	m, c := newManager()
	create(t, m)
	c.Advance(time.Hour)

	mgr := lifecycle.NewManager("test", nil)
	h, err := mgr.NewServiceHandle("sweeper")
	if err != nil {
		t.Fatal(err)
	}
	m.StartSweeper(h, time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for m.Active() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if m.Active() != 0 {
		t.Fatal("sweeper did not remove the expired session")
	}

	mgr.Shutdown()
	if left := mgr.WaitWithTimeout(time.Second); len(left) != 0 {
		t.Errorf("services still running: %v", left)
	}
}

func TestDestroyAllReleasesLiveSessions(t *testing.T) {
	m, _ := newManager()
	id, a, b := create(t, m)
	_, c, d := create(t, m)

	if n := m.DestroyAll(); n != 2 {
		t.Fatalf("DestroyAll() = %d, want 2", n)
	}
	for i, art := range []*fakeArtifact{a, b, c, d} {
		if got := art.releases.Load(); got != 1 {
			t.Errorf("artifact %d released %d times", i, got)
		}
	}
	if _, err := m.SubmitVote(id, SideA); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("SubmitVote after DestroyAll = %v, want NotFound", err)
	}
	if m.DestroyAll() != 0 {
		t.Error("second DestroyAll found sessions")
	}
}

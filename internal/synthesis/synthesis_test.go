package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeGenerator) Generate(_ context.Context, input, candidateID string) (Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, candidateID)
	f.mu.Unlock()
	if f.fail[candidateID] {
		return Output{}, errors.New("router unavailable")
	}
	return Output{Data: []byte(candidateID + ":" + input)}, nil
}

func files(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestHTTPGenerator(t *testing.T) {
	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		if got.Model == "broken" {
			http.Error(w, "model offline", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3"))
	}))
	defer srv.Close()

	gen := NewHTTPGenerator(srv.URL, 5*time.Second)
	out, err := gen.Generate(context.Background(), "hello", "kokoro-v1")
	if err != nil {
		t.Fatal(err)
	}
	if string(out.Data) != "ID3" || out.ContentType != "audio/mpeg" {
		t.Errorf("out = %+v", out)
	}
	if got.Text != "hello" || got.Model != "kokoro-v1" {
		t.Errorf("request = %+v", got)
	}

	if _, err := gen.Generate(context.Background(), "hello", "broken"); err == nil {
		t.Error("non-200 response should fail")
	}
}

func TestStoreSaveAndRelease(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	art, err := store.Save(Output{Data: []byte("RIFF")})
	if err != nil {
		t.Fatal(err)
	}
	if art.ContentType() != "audio/wav" {
		t.Errorf("ContentType() = %q", art.ContentType())
	}
	rc, err := art.Open()
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "RIFF" {
		t.Errorf("content = %q", data)
	}

	src := filepath.Join(t.TempDir(), "gen.wav")
	os.WriteFile(src, []byte("copy"), 0o644)
	copied, err := store.Save(Output{Path: src})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("generator file removed: %v", err)
	}

	for range 3 {
		if err := art.Release(); err != nil {
			t.Errorf("Release() = %v", err)
		}
	}
	copied.Release()
	if left := files(t, store.Dir()); len(left) != 0 {
		t.Errorf("files left = %v", left)
	}

	if _, err := store.Save(Output{}); err == nil {
		t.Error("empty output should fail")
	}
}

func TestGeneratePair(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	gen := &fakeGenerator{}
	svc := NewService(gen, store, logger.Nop(), nil)

	pair, err := svc.GeneratePair(context.Background(), "text", [2]string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"a:text", "b:text"} {
		data, err := os.ReadFile(pair[i].Path())
		if err != nil || string(data) != want {
			t.Errorf("side %d = %q, %v", i, data, err)
		}
	}
	if len(gen.calls) != 2 {
		t.Errorf("calls = %v", gen.calls)
	}
}

func TestGeneratePairReleasesOnFailure(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	gen := &fakeGenerator{fail: map[string]bool{"b": true}}
	svc := NewService(gen, store, logger.Nop(), nil)

	_, err := svc.GeneratePair(context.Background(), "text", [2]string{"a", "b"})
	if !errors.Is(err, apperr.ErrTransientUpstream) {
		t.Fatalf("err = %v, want transient upstream", err)
	}
	if left := files(t, store.Dir()); len(left) != 0 {
		t.Errorf("files left after failure = %v", left)
	}
}

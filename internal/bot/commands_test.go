package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/obentoo/paperbot/internal/paper"
)

// fakeSource returns the next queued version on every call.
type fakeSource struct {
	mu       sync.Mutex
	versions []string
	err      error
	calls    int
}

func (f *fakeSource) Current(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	v := f.versions[0]
	if len(f.versions) > 1 {
		f.versions = f.versions[1:]
	}
	return v, nil
}

// fakeBuilds records queried versions.
type fakeBuilds struct {
	queried []string
	err     error
}

func (f *fakeBuilds) Lookup(ctx context.Context, version string) (*paper.BuildRecord, error) {
	f.queried = append(f.queried, version)
	if f.err != nil {
		return nil, f.err
	}
	return &paper.BuildRecord{Version: version, Build: 42, Channel: paper.ChannelDefault}, nil
}

func (f *fakeBuilds) Summary(r *paper.BuildRecord) string {
	return fmt.Sprintf("%s #%d", r.Version, r.Build)
}

func newFileStore(t *testing.T) *paper.FileStore {
	t.Helper()
	return paper.NewFileStore(filepath.Join(t.TempDir(), "version.txt"))
}

func TestVersionCommandSavesEvenWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	if err := store.Save(ctx, "1.21.4"); err != nil {
		t.Fatal(err)
	}

	cmds := NewCommands(&fakeSource{versions: []string{"1.21.4"}}, store, &fakeBuilds{})
	reply, err := cmds.Version(ctx, &Request{Name: "version"})
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if reply != "Actual version: 1.21.4" {
		t.Errorf("reply = %q", reply)
	}

	got, ok, _ := store.Load(ctx)
	if !ok || got != "1.21.4" {
		t.Errorf("stored %q, %v", got, ok)
	}
}

func TestVersionCommandStoresNewVersion(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	cmds := NewCommands(&fakeSource{versions: []string{"1.21.5"}}, store, &fakeBuilds{})
	if _, err := cmds.Version(ctx, &Request{}); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := store.Load(ctx); got != "1.21.5" {
		t.Errorf("stored %q", got)
	}
}

func TestVersionCommandFetchFailure(t *testing.T) {
	cmds := NewCommands(&fakeSource{err: fmt.Errorf("%w: status 502", paper.ErrNetwork)}, newFileStore(t), &fakeBuilds{})

	reply, err := cmds.Version(context.Background(), &Request{})
	if err == nil {
		t.Error("expected error to be returned for logging")
	}
	if reply != ReplyFetchFailed {
		t.Errorf("reply = %q", reply)
	}
}

func TestLastVersionExplicitArgument(t *testing.T) {
	source := &fakeSource{versions: []string{"1.21.4"}}
	builds := &fakeBuilds{}
	cmds := NewCommands(source, newFileStore(t), builds)

	reply, err := cmds.LastVersion(context.Background(), &Request{Args: []string{"1.20.6"}})
	if err != nil {
		t.Fatalf("LastVersion failed: %v", err)
	}
	if reply != "1.20.6 #42" {
		t.Errorf("reply = %q", reply)
	}
	if source.calls != 0 {
		t.Error("explicit argument must not fetch the current version")
	}
}

func TestLastVersionDefaultIsEvaluatedPerCall(t *testing.T) {
	source := &fakeSource{versions: []string{"1.21.3", "1.21.4"}}
	builds := &fakeBuilds{}
	cmds := NewCommands(source, newFileStore(t), builds)

	for i := 0; i < 2; i++ {
		if _, err := cmds.LastVersion(context.Background(), &Request{}); err != nil {
			t.Fatalf("LastVersion failed: %v", err)
		}
	}
	if strings.Join(builds.queried, ",") != "1.21.3,1.21.4" {
		t.Errorf("queried %v, want the live version of each call", builds.queried)
	}
}

func TestLastVersionErrorReplies(t *testing.T) {
	tests := []struct {
		name      string
		sourceErr error
		buildsErr error
		want      string
	}{
		{"invalid version", nil, fmt.Errorf("%w: 9.9.9", paper.ErrInvalidVersion), ReplyWrongVersion},
		{"malformed response", nil, fmt.Errorf("%w: no builds", paper.ErrMalformedResponse), ReplyRequestProblem},
		{"network", nil, fmt.Errorf("%w: reset", paper.ErrNetwork), ReplyRequestProblem},
		{"default fetch failed", &paper.VersionNotFoundError{Text: "Downloads"}, nil, ReplyFetchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{versions: []string{"1.21.4"}, err: tt.sourceErr}
			builds := &fakeBuilds{err: tt.buildsErr}
			cmds := NewCommands(source, newFileStore(t), builds)

			reply, err := cmds.LastVersion(context.Background(), &Request{})
			if err == nil {
				t.Error("expected error to be returned for logging")
			}
			if reply != tt.want {
				t.Errorf("reply = %q, want %q", reply, tt.want)
			}
			if tt.sourceErr != nil && len(builds.queried) != 0 {
				t.Error("builds must not be queried without a version")
			}
		})
	}
}

func TestLastVersionAgainstBuildsAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/1.21.4/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"builds":[
			{"build":5,"time":"2024-01-01T00:00:00Z","channel":"default"},
			{"build":9,"time":"2024-02-01T00:00:00Z","channel":"experimental"}
		]}`))
	}))
	defer server.Close()

	lookup, err := paper.NewBuildLookup(server.URL+"/versions/{version}/builds", "Europe/Madrid", nil)
	if err != nil {
		t.Fatal(err)
	}
	router := NewRouter("!", NewCommands(&fakeSource{versions: []string{"1.21.4"}}, newFileStore(t), lookup).All()...)

	reply, ok := router.Dispatch(context.Background(), "!last_version", Request{})
	want := "Version: 1.21.4 #9\n **Experimental** on **01/02/2024 01:00:00**"
	if !ok || reply != want {
		t.Errorf("reply = %q, want %q", reply, want)
	}

	reply, _ = router.Dispatch(context.Background(), "!last_version 0.0.1", Request{})
	if reply != ReplyWrongVersion {
		t.Errorf("reply = %q, want %q", reply, ReplyWrongVersion)
	}
}

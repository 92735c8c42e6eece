package sessions

import (
	"os"
	"sync"
	"testing"

	"github.com/iotecha/loggy/internal/domain/session"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestCreateProvisionsDirectories(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Create("/tmp/bundle.tar.gz")
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != 12 {
		t.Errorf("id length = %d, want 12", len(id))
	}

	sess, ok := store.Get(id)
	if !ok {
		t.Fatal("session not registered")
	}
	if sess.State != session.StateLoaded {
		t.Errorf("state = %s, want loaded", sess.State)
	}
	for _, dir := range []string{sess.WorkDir, sess.ReportsDir} {
		st, err := os.Stat(dir)
		if err != nil || !st.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
}

func TestConcurrentCreatesAreDistinct(t *testing.T) {
	store := newTestStore(t)
	const n = 64

	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := store.Create("/tmp/input")
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seenID := map[string]bool{}
	seenDir := map[string]bool{}
	for _, id := range ids {
		if seenID[id] {
			t.Fatalf("duplicate session id %s", id)
		}
		seenID[id] = true
		sess, _ := store.Get(id)
		if seenDir[sess.WorkDir] {
			t.Fatalf("duplicate work dir %s", sess.WorkDir)
		}
		seenDir[sess.WorkDir] = true
	}
	if store.Count() != n {
		t.Errorf("count = %d, want %d", store.Count(), n)
	}
}

func TestMutators(t *testing.T) {
	store := newTestStore(t)
	id, _ := store.Create("/tmp/input")

	if err := store.SetState(id, session.StateAnalyzing); err != nil {
		t.Fatal(err)
	}
	if err := store.SetMode(id, "deep"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetDeviceID(id, "EVSE-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetOutput(id, "out", "err"); err != nil {
		t.Fatal(err)
	}

	sess, _ := store.Get(id)
	if sess.State != session.StateAnalyzing || sess.Mode != "deep" ||
		sess.DeviceID != "EVSE-1" || sess.Stdout != "out" || sess.Stderr != "err" {
		t.Errorf("mutations lost: %+v", sess)
	}
}

func TestMutatorsUnknownSession(t *testing.T) {
	store := newTestStore(t)
	if err := store.SetState("nope", session.StateDone); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	store := newTestStore(t)
	id, _ := store.Create("/tmp/input")

	sess, _ := store.Get(id)
	sess.DeviceID = "mutated copy"

	again, _ := store.Get(id)
	if again.DeviceID != "" {
		t.Error("Get must return a copy, not shared state")
	}
}

func TestListOrder(t *testing.T) {
	store := newTestStore(t)
	a, _ := store.Create("/tmp/a")
	b, _ := store.Create("/tmp/b")

	list := store.List()
	if len(list) != 2 || list[0].ID != a || list[1].ID != b {
		t.Errorf("list order wrong: %+v", list)
	}
}

func TestOutputDirDistinct(t *testing.T) {
	store := newTestStore(t)
	d1, err := store.OutputDir("compare")
	if err != nil {
		t.Fatal(err)
	}
	d2, err := store.OutputDir("compare")
	if err != nil {
		t.Fatal(err)
	}
	if d1 == d2 {
		t.Errorf("output dirs collide: %s", d1)
	}
	if st, err := os.Stat(d1); err != nil || !st.IsDir() {
		t.Errorf("dir %s not created", d1)
	}
}

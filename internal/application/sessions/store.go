// Package sessions holds the in-memory session registry. Sessions live
// for the lifetime of the process; directories are provisioned per
// session and never shared.
package sessions

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iotecha/loggy/internal/domain/session"
)

// ErrNotFound is returned for unknown session identifiers.
var ErrNotFound = errors.New("session not found")

// Store is the only structure mutated concurrently across requests;
// every read and write goes through the mutex.
type Store struct {
	mu    sync.Mutex
	root  string
	order []string
	byID  map[string]*session.Session
}

// NewStore creates the sessions root directory and an empty registry.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, byID: map[string]*session.Session{}}, nil
}

// newToken returns a short identifier with negligible collision
// probability; uuid-derived so it never repeats across restarts.
func newToken(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// Create registers a new session for inputPath and provisions its
// private work and reports directories.
func (s *Store) Create(inputPath string) (string, error) {
	id := newToken(12)
	workDir := filepath.Join(s.root, id)
	reportsDir := filepath.Join(workDir, "reports")
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id] = &session.Session{
		ID:         id,
		InputPath:  inputPath,
		WorkDir:    workDir,
		ReportsDir: reportsDir,
		State:      session.StateLoaded,
	}
	s.order = append(s.order, id)
	return id, nil
}

// Get returns a snapshot copy of the session.
func (s *Store) Get(id string) (session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return session.Session{}, false
	}
	return *sess, true
}

// List returns snapshot copies in creation order.
func (s *Store) List() []session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Store) SetState(id string, st session.State) error {
	return s.update(id, func(sess *session.Session) { sess.State = st })
}

func (s *Store) SetMode(id, mode string) error {
	return s.update(id, func(sess *session.Session) { sess.Mode = mode })
}

func (s *Store) SetDeviceID(id, deviceID string) error {
	return s.update(id, func(sess *session.Session) { sess.DeviceID = deviceID })
}

// SetOutput stores the captured analyzer output for later extraction.
func (s *Store) SetOutput(id, stdout, stderr string) error {
	return s.update(id, func(sess *session.Session) {
		sess.Stdout = stdout
		sess.Stderr = stderr
	})
}

func (s *Store) update(id string, fn func(*session.Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(sess)
	return nil
}

// OutputDir provisions a fresh directory under the sessions root for
// outputs that do not belong to one session, e.g. compare and fleet
// runs. The generated suffix keeps concurrent requests apart.
func (s *Store) OutputDir(prefix string) (string, error) {
	dir := filepath.Join(s.root, prefix+"_"+newToken(8))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Package session keeps the in-memory state of each uploaded workbook: the
// long table it produced and the user's edits to each region's history.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"co2forecast/pkg/contracts/domain"
)

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrRegionNotFound    = errors.New("region not found")
)

// Workspace is the state of one upload.
type Workspace struct {
	ID        string
	Filename  string
	Table     domain.EmissionTable
	Regions   []string
	CreatedAt time.Time
	TouchedAt time.Time

	// edits holds the replaced editable history per region.
	edits map[string]domain.EmissionTable
}

// Edited reports whether the region's history was replaced by the user.
func (w *Workspace) Edited(region string) bool {
	_, ok := w.edits[region]
	return ok
}

// Store is an in-memory, TTL-bounded workspace store.
type Store struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewStore creates a store whose workspaces expire after ttl without access.
// A zero ttl disables expiry.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		workspaces: make(map[string]*Workspace),
		ttl:        ttl,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "session_store")),
	}
}

// Create registers a new workspace for table and returns a snapshot of it.
func (s *Store) Create(filename string, table domain.EmissionTable) *Workspace {
	now := s.now()
	ws := &Workspace{
		ID:        uuid.New().String(),
		Filename:  filename,
		Table:     table.Clone(),
		Regions:   table.Regions(),
		CreatedAt: now,
		TouchedAt: now,
		edits:     make(map[string]domain.EmissionTable),
	}

	s.mu.Lock()
	s.workspaces[ws.ID] = ws
	s.mu.Unlock()

	s.logger.Info("workspace created",
		slog.String("workspace_id", ws.ID),
		slog.String("filename", filename),
		slog.Int("records", len(table)),
		slog.Int("regions", len(ws.Regions)))
	return ws.snapshot()
}

// Get returns a snapshot of a workspace and refreshes its TTL.
func (s *Store) Get(id string) (*Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	ws.TouchedAt = s.now()
	return ws.snapshot(), nil
}

// History returns the editable rows of region: the user's edit if present,
// otherwise the uploaded rows dated before cutoff.
func (s *Store) History(id, region string, cutoff int) (domain.EmissionTable, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.lookup(id)
	if err != nil {
		return nil, false, err
	}
	ws.TouchedAt = s.now()

	if edited, ok := ws.edits[region]; ok {
		return edited.Clone(), true, nil
	}
	if !ws.Table.HasRegion(region) {
		return nil, false, fmt.Errorf("%w: %q", ErrRegionNotFound, region)
	}
	return ws.Table.ForRegion(region).Before(cutoff), false, nil
}

// SetHistory replaces the editable rows of region. Rows are stamped with region.
func (s *Store) SetHistory(id, region string, rows domain.EmissionTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !ws.Table.HasRegion(region) {
		return fmt.Errorf("%w: %q", ErrRegionNotFound, region)
	}

	edited := make(domain.EmissionTable, len(rows))
	for i, rec := range rows {
		rec.Region = region
		edited[i] = rec
	}
	ws.edits[region] = edited
	ws.TouchedAt = s.now()
	return nil
}

// ResetHistory discards the user's edits for region.
func (s *Store) ResetHistory(id, region string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.lookup(id)
	if err != nil {
		return err
	}
	delete(ws.edits, region)
	ws.TouchedAt = s.now()
	return nil
}

// Delete removes a workspace.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(id); err != nil {
		return err
	}
	delete(s.workspaces, id)
	return nil
}

// Len returns the number of live workspaces.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workspaces)
}

// Sweep drops workspaces idle for longer than the TTL and returns their IDs.
func (s *Store) Sweep() []string {
	if s.ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	var expired []string
	for id, ws := range s.workspaces {
		if ws.TouchedAt.Before(cutoff) {
			delete(s.workspaces, id)
			expired = append(expired, id)
		}
	}
	if len(expired) > 0 {
		s.logger.Info("expired workspaces removed", slog.Int("count", len(expired)))
	}
	return expired
}

// Run sweeps every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// lookup must be called with s.mu held.
func (s *Store) lookup(id string) (*Workspace, error) {
	ws, ok := s.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	return ws, nil
}

func (w *Workspace) snapshot() *Workspace {
	cp := *w
	cp.Table = w.Table.Clone()
	cp.Regions = append([]string(nil), w.Regions...)
	cp.edits = make(map[string]domain.EmissionTable, len(w.edits))
	for region, rows := range w.edits {
		cp.edits[region] = rows.Clone()
	}
	return &cp
}

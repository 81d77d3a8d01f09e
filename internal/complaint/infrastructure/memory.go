package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/resolveit/grievance-platform/internal/complaint/domain"
	"github.com/resolveit/grievance-platform/internal/identity"
	"github.com/resolveit/grievance-platform/internal/shared/errors"
	"github.com/resolveit/grievance-platform/internal/shared/types"
)

// MemoryStore keeps complaints, history and users in process memory. It
// backs the platform's limited mode when the database is unreachable and
// the service and sweeper tests.
type MemoryStore struct {
	mu         sync.RWMutex
	complaints map[types.ID]*domain.Complaint
	history    map[types.ID][]domain.StatusHistoryEntry
	users      map[types.ID]*identity.User
}

// NewMemoryStore creates an empty in-memory complaint store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		complaints: make(map[types.ID]*domain.Complaint),
		history:    make(map[types.ID][]domain.StatusHistoryEntry),
		users:      make(map[types.ID]*identity.User),
	}
}

// AddUser registers a user account; users double as the officer directory
func (s *MemoryStore) AddUser(u *identity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

func (s *MemoryStore) Create(_ context.Context, c *domain.Complaint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.complaints[c.ID]; ok {
		return errors.Conflict("complaint already exists")
	}
	cp := *c
	s.complaints[c.ID] = &cp
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id types.ID) (*domain.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.complaints[id]
	if !ok {
		return nil, errors.NotFound("complaint", id.String())
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, c *domain.Complaint, entries ...*domain.StatusHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.complaints[c.ID]; !ok {
		return errors.NotFound("complaint", c.ID.String())
	}
	cp := *c
	s.complaints[c.ID] = &cp
	for _, e := range entries {
		s.history[e.ComplaintID] = append(s.history[e.ComplaintID], *e)
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Complaint, 0, len(s.complaints))
	for _, c := range s.complaints {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) FindUnassigned(_ context.Context, statuses []domain.Status) ([]domain.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Complaint
	for _, c := range s.complaints {
		if c.AssignedOfficerID == nil && statusIn(c.Status, statuses) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) FindOverdueAssigned(_ context.Context, officerLevel identity.OfficerLevel, now time.Time, statuses []domain.Status) ([]domain.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Complaint
	for _, c := range s.complaints {
		if c.AssignedOfficerID == nil || c.DueDate == nil || !c.DueDate.Before(now) {
			continue
		}
		if !statusIn(c.Status, statuses) {
			continue
		}
		officer, ok := s.users[*c.AssignedOfficerID]
		if !ok || officer.OfficerLevel != officerLevel {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out, nil
}

func (s *MemoryStore) FindOwnedByUser(_ context.Context, userID types.ID) ([]domain.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Complaint
	for _, c := range s.complaints {
		if c.OwnerID != nil && *c.OwnerID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) FindByAssignedOfficer(_ context.Context, officerID types.ID) ([]domain.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Complaint
	for _, c := range s.complaints {
		if c.AssignedOfficerID != nil && *c.AssignedOfficerID == officerID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, entry *domain.StatusHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[entry.ComplaintID] = append(s.history[entry.ComplaintID], *entry)
	return nil
}

func (s *MemoryStore) History(_ context.Context, complaintID types.ID) ([]domain.StatusHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[complaintID]
	out := make([]domain.StatusHistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *MemoryStore) FindUser(_ context.Context, id types.ID) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errors.NotFound("user", id.String())
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) FindOfficers(_ context.Context, role identity.Role, level *identity.OfficerLevel) ([]identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []identity.User
	for _, u := range s.users {
		if u.Role != role || !u.Active {
			continue
		}
		if level != nil && u.OfficerLevel != *level {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func statusIn(s domain.Status, set []domain.Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

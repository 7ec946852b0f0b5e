package access

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Service defines permission-matrix operations.
type Service interface {
	Permissions(ctx context.Context, role string) (Matrix, error)
	ModulePermissions(ctx context.Context, role, module string) (Capabilities, bool, error)
	Upsert(ctx context.Context, role, module string, caps Capabilities) error
	Delete(ctx context.Context, role, module string) error
	AllPermissions(ctx context.Context) (map[string]Matrix, error)
	AvailableModules(ctx context.Context) ([]string, error)
	AvailableRoles(ctx context.Context) ([]string, error)
}

type matrixKey struct {
	role   string
	module string
}

// InMemory implements Service with in-process concurrency safety.
type InMemory struct {
	mu   sync.RWMutex
	rows map[matrixKey]Capabilities
}

// NewInMemory creates an empty permission matrix.
func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[matrixKey]Capabilities)}
}

// Permissions returns the capability map for a role. Modules without a row
// are omitted; callers treat a missing key as no access.
func (s *InMemory) Permissions(ctx context.Context, role string) (Matrix, error) {
	role = normalize(role)
	if role == "" {
		return nil, fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := Matrix{}
	for key, caps := range s.rows {
		if key.role == role {
			result[key.module] = caps
		}
	}
	return result, nil
}

// ModulePermissions resolves one (role, module) pair. Absent rows yield the
// explicit Denied default and found=false.
func (s *InMemory) ModulePermissions(ctx context.Context, role, module string) (Capabilities, bool, error) {
	role, module = normalize(role), normalize(module)
	if role == "" || module == "" {
		return Denied, false, fmt.Errorf("%w: role and module are required", ErrInvalidInput)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	caps, ok := s.rows[matrixKey{role: role, module: module}]
	if !ok {
		return Denied, false, nil
	}
	return caps, true, nil
}

// Upsert writes all five capability flags for the pair, inserting the row
// when absent.
func (s *InMemory) Upsert(ctx context.Context, role, module string, caps Capabilities) error {
	role, module = normalize(role), normalize(module)
	if role == "" || module == "" {
		return fmt.Errorf("%w: role and module are required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[matrixKey{role: role, module: module}] = caps
	return nil
}

func (s *InMemory) Delete(ctx context.Context, role, module string) error {
	role, module = normalize(role), normalize(module)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := matrixKey{role: role, module: module}
	if _, ok := s.rows[key]; !ok {
		return ErrNotFound
	}
	delete(s.rows, key)
	return nil
}

func (s *InMemory) AllPermissions(ctx context.Context) (map[string]Matrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grouped := map[string]Matrix{}
	for key, caps := range s.rows {
		if grouped[key.role] == nil {
			grouped[key.role] = Matrix{}
		}
		grouped[key.role][key.module] = caps
	}
	return grouped, nil
}

// AvailableModules returns the union of stored modules and the fixed
// baseline, sorted ascending.
func (s *InMemory) AvailableModules(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	for key := range s.rows {
		seen[key.module] = true
	}
	return mergeBaseline(seen, BaselineModules), nil
}

// AvailableRoles returns the union of stored roles and the fixed baseline,
// sorted ascending.
func (s *InMemory) AvailableRoles(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	for key := range s.rows {
		seen[key.role] = true
	}
	return mergeBaseline(seen, BaselineRoles), nil
}

func mergeBaseline(seen map[string]bool, baseline []string) []string {
	for _, v := range baseline {
		seen[v] = true
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

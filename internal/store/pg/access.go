package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"medicore.org/internal/access"
)

var _ access.Service = (*Store)(nil)

func (s *Store) Permissions(ctx context.Context, role string) (access.Matrix, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return nil, fmt.Errorf("%w: role is required", access.ErrInvalidInput)
	}
	rows, err := s.db.QueryContext(ctx, `
		select module, can_view, can_create, can_edit, can_delete, can_export
		from role_permissions
		where role = $1
	`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := access.Matrix{}
	for rows.Next() {
		var (
			module string
			caps   access.Capabilities
		)
		if err := rows.Scan(&module, &caps.View, &caps.Create, &caps.Edit, &caps.Delete, &caps.Export); err != nil {
			return nil, err
		}
		result[module] = caps
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ModulePermissions resolves one pair; a missing row is the explicit denied
// default, not an error.
func (s *Store) ModulePermissions(ctx context.Context, role, module string) (access.Capabilities, bool, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	module = strings.ToLower(strings.TrimSpace(module))
	if role == "" || module == "" {
		return access.Denied, false, fmt.Errorf("%w: role and module are required", access.ErrInvalidInput)
	}
	var caps access.Capabilities
	err := s.db.QueryRowContext(ctx, `
		select can_view, can_create, can_edit, can_delete, can_export
		from role_permissions
		where role = $1 and module = $2
	`, role, module).Scan(&caps.View, &caps.Create, &caps.Edit, &caps.Delete, &caps.Export)
	if errors.Is(err, sql.ErrNoRows) {
		return access.Denied, false, nil
	}
	if err != nil {
		return access.Denied, false, err
	}
	return caps, true, nil
}

// Upsert writes all five flags for the pair in one statement.
func (s *Store) Upsert(ctx context.Context, role, module string, caps access.Capabilities) error {
	role = strings.ToLower(strings.TrimSpace(role))
	module = strings.ToLower(strings.TrimSpace(module))
	if role == "" || module == "" {
		return fmt.Errorf("%w: role and module are required", access.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		insert into role_permissions (role, module, can_view, can_create, can_edit, can_delete, can_export)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (role, module) do update
		set can_view = excluded.can_view,
			can_create = excluded.can_create,
			can_edit = excluded.can_edit,
			can_delete = excluded.can_delete,
			can_export = excluded.can_export,
			updated_at = now()
	`, role, module, caps.View, caps.Create, caps.Edit, caps.Delete, caps.Export)
	return err
}

func (s *Store) Delete(ctx context.Context, role, module string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	module = strings.ToLower(strings.TrimSpace(module))
	res, err := s.db.ExecContext(ctx, `
		delete from role_permissions where role = $1 and module = $2
	`, role, module)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return access.ErrNotFound
	}
	return nil
}

func (s *Store) AllPermissions(ctx context.Context) (map[string]access.Matrix, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role, module, can_view, can_create, can_edit, can_delete, can_export
		from role_permissions
		order by role, module
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := map[string]access.Matrix{}
	for rows.Next() {
		var (
			role, module string
			caps         access.Capabilities
		)
		if err := rows.Scan(&role, &module, &caps.View, &caps.Create, &caps.Edit, &caps.Delete, &caps.Export); err != nil {
			return nil, err
		}
		if grouped[role] == nil {
			grouped[role] = access.Matrix{}
		}
		grouped[role][module] = caps
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grouped, nil
}

func (s *Store) AvailableModules(ctx context.Context) ([]string, error) {
	return s.distinctWithBaseline(ctx, `select distinct module from role_permissions`, access.BaselineModules)
}

func (s *Store) AvailableRoles(ctx context.Context) ([]string, error) {
	return s.distinctWithBaseline(ctx, `select distinct role from role_permissions`, access.BaselineRoles)
}

// distinctWithBaseline unions a one-column query with a fixed baseline and
// sorts the result.
func (s *Store) distinctWithBaseline(ctx context.Context, query string, baseline []string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		seen[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, v := range baseline {
		seen[v] = true
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

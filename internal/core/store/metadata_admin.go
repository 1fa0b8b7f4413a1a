package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MetadataQuery selects cache rows for list, count and reset.
type MetadataQuery struct {
	All     bool
	Kind    string
	Project string
}

func (q MetadataQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Kind) != "" {
		return nil
	}
	if strings.TrimSpace(q.Project) != "" {
		return nil
	}
	return errors.New("must specify --all, --kind, or --project")
}

func (q MetadataQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}

	var (
		conditions []string
		args       []any
	)
	if kind := strings.TrimSpace(q.Kind); kind != "" {
		parsed, err := ParseMetadataKind(kind)
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, "kind = ?")
		args = append(args, string(parsed))
	}
	if project := strings.TrimSpace(q.Project); project != "" {
		conditions = append(conditions, "project_key = ?")
		args = append(args, strings.ToUpper(project))
	}
	return "WHERE " + strings.Join(conditions, " AND "), args, nil
}

func (s *Store) ListMetadata(ctx context.Context, q MetadataQuery) ([]MetadataEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT space, project_key, kind, item_count, cached_at
		FROM metadata_cache
		%s
		ORDER BY space, project_key, kind
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list cached metadata: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []MetadataEntry{}
	for rows.Next() {
		var (
			entry    MetadataEntry
			kind     string
			cachedAt int64
		)
		if err := rows.Scan(&entry.Space, &entry.ProjectKey, &kind, &entry.ItemCount, &cachedAt); err != nil {
			return nil, fmt.Errorf("scan cached metadata: %w", err)
		}
		entry.Kind = MetadataKind(kind)
		entry.CachedAt = time.Unix(cachedAt, 0).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cached metadata: %w", err)
	}

	return entries, nil
}

func (s *Store) CountMetadata(ctx context.Context, q MetadataQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM metadata_cache
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count cached metadata: %w", err)
	}
	return count, nil
}

func (s *Store) ResetMetadata(ctx context.Context, q MetadataQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM metadata_cache
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset cached metadata: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset cached metadata: %w", err)
	}
	return affected, nil
}

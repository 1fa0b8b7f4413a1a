package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MetadataKind names a cached project lookup table.
type MetadataKind string

const (
	KindProject     MetadataKind = "project"
	KindStatuses    MetadataKind = "statuses"
	KindIssueTypes  MetadataKind = "issue-types"
	KindPriorities  MetadataKind = "priorities"
	KindResolutions MetadataKind = "resolutions"
	KindUsers       MetadataKind = "users"
	KindCategories  MetadataKind = "categories"
	KindVersions    MetadataKind = "versions"
)

// MetadataKinds lists every kind in display order.
var MetadataKinds = []MetadataKind{
	KindProject,
	KindStatuses,
	KindIssueTypes,
	KindPriorities,
	KindResolutions,
	KindUsers,
	KindCategories,
	KindVersions,
}

// ParseMetadataKind accepts a kind name, case-insensitively.
func ParseMetadataKind(value string) (MetadataKind, error) {
	normalized := MetadataKind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range MetadataKinds {
		if kind == normalized {
			return kind, nil
		}
	}
	names := make([]string, len(MetadataKinds))
	for i, kind := range MetadataKinds {
		names[i] = string(kind)
	}
	return "", fmt.Errorf("unknown metadata kind %q (valid: %s)", value, strings.Join(names, ", "))
}

// Scope identifies the Backlog project a cache entry belongs to.
type Scope struct {
	Space      string
	ProjectKey string
}

func (s Scope) normalized() (Scope, error) {
	out := Scope{
		Space:      strings.ToLower(strings.TrimSpace(s.Space)),
		ProjectKey: strings.ToUpper(strings.TrimSpace(s.ProjectKey)),
	}
	if out.Space == "" || out.ProjectKey == "" {
		return out, errors.New("cache scope requires space and project key")
	}
	return out, nil
}

// MetadataEntry is one cached lookup table.
type MetadataEntry struct {
	Space      string
	ProjectKey string
	Kind       MetadataKind
	Payload    json.RawMessage
	ItemCount  int
	CachedAt   time.Time
}

// Decode unmarshals the cached payload into out.
func (e *MetadataEntry) Decode(out any) error {
	if e == nil {
		return errors.New("metadata entry is nil")
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("decode cached %s: %w", e.Kind, err)
	}
	return nil
}

// GetMetadata returns the cached entry, or nil when nothing is cached.
func (s *Store) GetMetadata(ctx context.Context, scope Scope, kind MetadataKind) (*MetadataEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	scope, err := scope.normalized()
	if err != nil {
		return nil, err
	}

	var (
		payload   string
		itemCount int
		cachedAt  int64
	)
	row := s.DB.QueryRowContext(ctx, `
		SELECT payload, item_count, cached_at
		FROM metadata_cache
		WHERE space = ? AND project_key = ? AND kind = ?
	`, scope.Space, scope.ProjectKey, string(kind))
	if err := row.Scan(&payload, &itemCount, &cachedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached metadata: %w", err)
	}

	return &MetadataEntry{
		Space:      scope.Space,
		ProjectKey: scope.ProjectKey,
		Kind:       kind,
		Payload:    json.RawMessage(payload),
		ItemCount:  itemCount,
		CachedAt:   time.Unix(cachedAt, 0).UTC(),
	}, nil
}

// PutMetadata stores value as the JSON payload for kind, replacing any
// previous entry.
func (s *Store) PutMetadata(ctx context.Context, scope Scope, kind MetadataKind, value any) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	scope, err := scope.normalized()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached metadata: %w", err)
	}

	itemCount := 1
	var items []json.RawMessage
	if json.Unmarshal(payload, &items) == nil {
		itemCount = len(items)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO metadata_cache (space, project_key, kind, payload, item_count, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(space, project_key, kind) DO UPDATE SET
			payload = excluded.payload,
			item_count = excluded.item_count,
			cached_at = excluded.cached_at
	`, scope.Space, scope.ProjectKey, string(kind), string(payload), itemCount, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store cached metadata: %w", err)
	}
	return nil
}

var (
	// ErrNotCached is returned by ResolveID when the kind has never been fetched.
	ErrNotCached = errors.New("metadata not cached")
	// ErrNoMatch is returned when a name matches no item, or more than one.
	ErrNoMatch = errors.New("no unique match")
)

// ResolveID maps a display name (or user id) to its numeric id using the
// cached table for kind.
func (s *Store) ResolveID(ctx context.Context, scope Scope, kind MetadataKind, name string) (int, error) {
	entry, err := s.GetMetadata(ctx, scope, kind)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, fmt.Errorf("%w: %s", ErrNotCached, kind)
	}

	var items []NamedItem
	if err := entry.Decode(&items); err != nil {
		return 0, err
	}
	return MatchName(items, kind, name)
}

// NamedItem is the shape shared by every list kind.
type NamedItem struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	UserID string `json:"userId,omitempty"`
}

// MatchName finds name among items: an exact case-insensitive match wins,
// otherwise a single partial match. Users also match on their login id.
func MatchName(items []NamedItem, kind MetadataKind, name string) (int, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return 0, fmt.Errorf("%s name is required", kind)
	}

	for _, item := range items {
		if strings.ToLower(item.Name) == needle {
			return item.ID, nil
		}
		if kind == KindUsers && item.UserID != "" && strings.ToLower(item.UserID) == needle {
			return item.ID, nil
		}
	}

	var partial []NamedItem
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), needle) ||
			(kind == KindUsers && strings.Contains(strings.ToLower(item.UserID), needle)) {
			partial = append(partial, item)
		}
	}

	switch len(partial) {
	case 0:
		names := make([]string, len(items))
		for i, item := range items {
			names[i] = item.Name
		}
		sort.Strings(names)
		return 0, fmt.Errorf("%w: no %s matches %q (available: %s)", ErrNoMatch, kind, name, strings.Join(names, ", "))
	case 1:
		return partial[0].ID, nil
	default:
		candidates := make([]string, len(partial))
		for i, item := range partial {
			candidates[i] = item.Name
		}
		return 0, fmt.Errorf("%w: %q matches multiple %s: %s", ErrNoMatch, name, kind, strings.Join(candidates, ", "))
	}
}

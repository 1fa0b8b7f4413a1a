package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/backlogsync/backlogsync/internal/backlog"
	"github.com/backlogsync/backlogsync/internal/config"
	"github.com/backlogsync/backlogsync/internal/core/store"
	errwrap "github.com/backlogsync/backlogsync/internal/errors"
	"github.com/backlogsync/backlogsync/internal/observability"
	"github.com/backlogsync/backlogsync/internal/output"
)

// session bundles what an API command needs: the loaded config, a client and
// the lazily opened metadata cache.
type session struct {
	cfg    *config.Config
	client *backlog.Client

	cache       *store.Store
	cacheOpened bool
}

func newClient(cfg *config.Config) (*backlog.Client, error) {
	return backlog.NewClient(backlog.Config{
		Space:   cfg.Space,
		APIKey:  cfg.APIKey,
		Domain:  cfg.Domain,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Logger:  observability.APILogger{Logger: observability.CLILogger},
	})
}

// connect requires complete connection settings and returns a session.
// Callers must close it.
func connect(cmd *cobra.Command) (*session, error) {
	cfg, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireConnection(); err != nil {
		return nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, errwrap.WrapConfigInvalid(cmd.Context(), err, "invalid connection settings")
	}
	return &session{cfg: cfg, client: client}, nil
}

func (s *session) close() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

func (s *session) scope() store.Scope {
	return scopeFor(s.cfg)
}

func scopeFor(cfg *config.Config) store.Scope {
	space := cfg.Space
	if strings.TrimSpace(space) == "" {
		space = cfg.BaseURL
	}
	return store.Scope{Space: space, ProjectKey: cfg.ProjectKey}
}

// metadataStore opens the cache once. A cache that cannot be opened only
// costs extra API calls, so the failure is logged and nil returned.
func (s *session) metadataStore(ctx context.Context) *store.Store {
	if s.cacheOpened {
		return s.cache
	}
	s.cacheOpened = true

	st, err := store.OpenMigrated(ctx, s.cfg.Store)
	if err != nil {
		observability.CLILogger.Warn("Metadata cache unavailable", zap.Error(err))
		return nil
	}
	s.cache = st
	return st
}

// metadataFor returns the cached table for kind, fetching and caching it on a
// miss or when refresh is set.
func (s *session) metadataFor(ctx context.Context, kind store.MetadataKind, refresh bool) (*store.MetadataEntry, error) {
	cache := s.metadataStore(ctx)
	if cache != nil && !refresh {
		entry, err := cache.GetMetadata(ctx, s.scope(), kind)
		if err != nil {
			observability.CLILogger.Warn("Metadata cache read failed", zap.String("kind", string(kind)), zap.Error(err))
		} else if entry != nil {
			observability.CLILogger.Debug("Metadata cache hit", zap.String("kind", string(kind)))
			return entry, nil
		}
	}

	value, err := fetchMetadata(ctx, s.client, s.cfg.ProjectKey, kind)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		if err := cache.PutMetadata(ctx, s.scope(), kind, value); err != nil {
			observability.CLILogger.Warn("Metadata cache write failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	scope := s.scope()
	return &store.MetadataEntry{
		Space:      scope.Space,
		ProjectKey: scope.ProjectKey,
		Kind:       kind,
		Payload:    payload,
	}, nil
}

func fetchMetadata(ctx context.Context, client *backlog.Client, projectKey string, kind store.MetadataKind) (any, error) {
	switch kind {
	case store.KindProject:
		return client.GetProject(ctx, projectKey)
	case store.KindStatuses:
		return client.GetStatuses(ctx, projectKey)
	case store.KindIssueTypes:
		return client.GetIssueTypes(ctx, projectKey)
	case store.KindPriorities:
		return client.GetPriorities(ctx)
	case store.KindResolutions:
		return client.GetResolutions(ctx)
	case store.KindUsers:
		return client.GetProjectUsers(ctx, projectKey)
	case store.KindCategories:
		return client.GetCategories(ctx, projectKey)
	case store.KindVersions:
		return client.GetVersions(ctx, projectKey)
	default:
		return nil, fmt.Errorf("unknown metadata kind %q", kind)
	}
}

func (s *session) project(ctx context.Context) (*backlog.Project, error) {
	entry, err := s.metadataFor(ctx, store.KindProject, false)
	if err != nil {
		return nil, err
	}
	var project backlog.Project
	if err := entry.Decode(&project); err != nil {
		return nil, err
	}
	return &project, nil
}

// resolveID accepts a numeric id or a display name. Names are looked up in
// the cache first; a miss or an unknown name refreshes the table once.
func (s *session) resolveID(ctx context.Context, kind store.MetadataKind, value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errwrap.NewInvalidInputError(fmt.Sprintf("%s name is required", kind))
	}
	if id, err := strconv.Atoi(value); err == nil {
		return id, nil
	}

	if cache := s.metadataStore(ctx); cache != nil {
		id, err := cache.ResolveID(ctx, s.scope(), kind, value)
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, store.ErrNotCached), errors.Is(err, store.ErrNoMatch):
			observability.CLILogger.Debug("Refreshing metadata for name lookup",
				zap.String("kind", string(kind)), zap.String("name", value), zap.Error(err))
		default:
			observability.CLILogger.Warn("Metadata cache read failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	}

	entry, err := s.metadataFor(ctx, kind, true)
	if err != nil {
		return 0, err
	}
	var items []store.NamedItem
	if err := entry.Decode(&items); err != nil {
		return 0, err
	}
	id, err := store.MatchName(items, kind, value)
	if err != nil {
		return 0, errwrap.NewInvalidInputError(strings.TrimPrefix(err.Error(), store.ErrNoMatch.Error()+": "))
	}
	return id, nil
}

func (s *session) resolveIDs(ctx context.Context, kind store.MetadataKind, values []string) ([]int, error) {
	if len(values) == 0 {
		return nil, nil
	}
	ids := make([]int, 0, len(values))
	for _, value := range values {
		id, err := s.resolveID(ctx, kind, value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// optionalID resolves value when the flag was given.
func (s *session) optionalID(ctx context.Context, cmd *cobra.Command, flag string, kind store.MetadataKind, value string) (*int, error) {
	if !cmd.Flags().Changed(flag) {
		return nil, nil
	}
	id, err := s.resolveID(ctx, kind, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// apiError turns client failures into envelopes and leaves others untouched.
func apiError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := backlog.AsError(err); ok {
		return errwrap.WrapBacklog(ctx, err)
	}
	return err
}

// writeOutput renders value in the --output-format to --out or the command's
// stdout.
func writeOutput(cmd *cobra.Command, value any, tableFn output.TableFunc) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return errwrap.NewInvalidInputError(err.Error())
	}

	sink, err := openSink(cmd.OutOrStdout(), outFile)
	if err != nil {
		return err
	}
	writeErr := output.Write(sink.writer, format, value, tableFn)
	closeErr := sink.close()
	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil {
		return closeErr
	}
	if sink.path != "" {
		observability.CLILogger.Debug("Output written", zap.String("path", sink.path))
	}
	return nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

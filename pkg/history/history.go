// Package history keeps a bounded per-deployment log of deployment attempts.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Nikolaikolya/deploy-commander/pkg/chain"
	dcerrors "github.com/Nikolaikolya/deploy-commander/pkg/errors"
	"github.com/Nikolaikolya/deploy-commander/pkg/history/backend"
)

// DefaultLimit is the number of records kept per deployment.
const DefaultLimit = 100

// Record is one deployment attempt.
type Record struct {
	Deployment string `json:"deployment" yaml:"deployment"`
	Event      string `json:"event" yaml:"event"`
	// Timestamp is in unix seconds.
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
	Success   bool   `json:"success" yaml:"success"`
	Details   string `json:"details,omitempty" yaml:"details,omitempty"`
	RunID     string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

// Time returns the record timestamp as a time.Time.
func (r Record) Time() time.Time {
	return time.Unix(r.Timestamp, 0)
}

type document struct {
	Records map[string][]Record `json:"records"`
}

// Store persists records as one JSON document in a backend.
type Store struct {
	backend backend.Backend
	key     string
	limit   int
	now     func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLimit sets the per-deployment cap. Values below 1 keep the default.
func WithLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// NewStore creates a store that keeps its document under key in b.
func NewStore(b backend.Backend, key string, opts ...Option) *Store {
	s := &Store{
		backend: b,
		key:     key,
		limit:   DefaultLimit,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds a record, evicting the oldest records of the deployment beyond
// the cap. A zero Timestamp is set to the current time.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if rec.Timestamp == 0 {
		rec.Timestamp = s.now().Unix()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}

	records := append(doc.Records[rec.Deployment], rec)
	if len(records) > s.limit {
		records = records[len(records)-s.limit:]
	}
	doc.Records[rec.Deployment] = records

	return s.save(ctx, doc)
}

// Query returns the newest limit records of deployment in chronological
// order. A limit of zero or less returns every record.
func (s *Store) Query(ctx context.Context, deployment string, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	records := doc.Records[deployment]
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return append([]Record{}, records...), nil
}

// Clear removes the records of deployment. An empty deployment deletes the
// whole history document.
func (s *Store) Clear(ctx context.Context, deployment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deployment == "" {
		if err := s.backend.Delete(ctx, s.key); err != nil {
			return dcerrors.BackendError(s.backend.Type(), "delete", err)
		}
		return nil
	}

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	delete(doc.Records, deployment)
	return s.save(ctx, doc)
}

// Exists reports whether a history document has been written.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.backend.Exists(ctx, s.key)
	if err != nil {
		return false, dcerrors.BackendError(s.backend.Type(), "exists", err)
	}
	return ok, nil
}

// Deployments lists the deployments that have records, sorted by name.
func (s *Store) Deployments(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(doc.Records))
	for name, records := range doc.Records {
		if len(records) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// RecordChainResult appends the outcome of a chain run.
func (s *Store) RecordChainResult(ctx context.Context, deployment, event, runID string, res *chain.Result) error {
	return s.Append(ctx, Record{
		Deployment: deployment,
		Event:      event,
		Success:    res.Success,
		Details:    ChainDetails(res),
		RunID:      runID,
	})
}

// ChainDetails summarises a chain result for a history record.
func ChainDetails(res *chain.Result) string {
	if res.Success {
		return fmt.Sprintf("executed %d commands", len(res.Results))
	}
	if msg := res.FirstError(); msg != "" {
		return msg
	}
	return "chain failed"
}

func (s *Store) load(ctx context.Context) (*document, error) {
	doc := &document{Records: map[string][]Record{}}

	reader, err := s.backend.Read(ctx, s.key)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return doc, nil
		}
		return nil, dcerrors.BackendError(s.backend.Type(), "read", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, dcerrors.BackendError(s.backend.Type(), "read", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, dcerrors.ParseError(s.key, err)
	}
	if doc.Records == nil {
		doc.Records = map[string][]Record{}
	}
	return doc, nil
}

func (s *Store) save(ctx context.Context, doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := s.backend.Write(ctx, s.key, bytes.NewReader(data)); err != nil {
		return dcerrors.BackendError(s.backend.Type(), "write", err)
	}
	return nil
}

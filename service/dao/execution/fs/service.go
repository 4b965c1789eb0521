package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/service/dao"
	"github.com/viant/facilitor/service/dao/criteria"
)

// Service implements a filesystem-based node execution storage.  Conditional
// updates are serialised by a service-level mutex; in a single-process
// deployment this satisfies the same contract as a database-native
// compare-and-swap.
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
}

// Ensure Service implements dao.ConditionalService
var _ dao.ConditionalService[string, execution.NodeExecution] = (*Service)(nil)

// Save persists a node execution to the filesystem.
func (s *Service) Save(ctx context.Context, e *execution.NodeExecution) error {
	if e == nil {
		return dao.ErrNilEntity
	}
	if e.UUID == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload(ctx, e)
}

func (s *Service) upload(ctx context.Context, e *execution.NodeExecution) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}
	filePath := s.executionPath(e.UUID)
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save execution to file %s: %w", filePath, err)
	}
	return nil
}

// Load retrieves a node execution from the filesystem.
func (s *Service) Load(ctx context.Context, id string) (*execution.NodeExecution, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.download(ctx, id)
}

func (s *Service) download(ctx context.Context, id string) (*execution.NodeExecution, error) {
	filePath := s.executionPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if execution exists: %w", err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}

	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read execution file: %w", err)
	}

	var nodeExecution execution.NodeExecution
	if err := json.Unmarshal(data, &nodeExecution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution data: %w", err)
	}
	return &nodeExecution, nil
}

// Delete removes a node execution from the filesystem.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.executionPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to check if execution exists: %w", err)
	}
	if !exists {
		return dao.ErrNotFound
	}
	if err = s.fs.Delete(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete execution file %s: %w", filePath, err)
	}
	return nil
}

// List returns node executions matching the supplied parameters.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.NodeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	var out []*execution.NodeExecution
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(object.Name(), ".json")
		nodeExecution, err := s.download(ctx, id)
		if err != nil {
			continue
		}
		if !criteria.Matches("Status", string(nodeExecution.Status), parameters) {
			continue
		}
		if !criteria.Matches("PlanExecutionID", nodeExecution.Ambiance.PlanExecutionID, parameters) {
			continue
		}
		out = append(out, nodeExecution)
	}
	return out, nil
}

// ConditionalUpdate applies mutator only when the stored version still
// equals expectedVersion, bumping the version on success.
func (s *Service) ConditionalUpdate(ctx context.Context, id string, expectedVersion int, mutator func(*execution.NodeExecution) error) (*execution.NodeExecution, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.download(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.Version != expectedVersion {
		return nil, dao.ErrConflict
	}
	if err := mutator(stored); err != nil {
		return nil, err
	}
	stored.Version = expectedVersion + 1
	if err := s.upload(ctx, stored); err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

func (s *Service) executionPath(id string) string {
	return path.Join(s.basePath, id+".json")
}

// New creates a filesystem-backed node execution DAO rooted at basePath.
func New(basePath string) *Service {
	return &Service{
		basePath: basePath,
		fs:       afs.New(),
	}
}

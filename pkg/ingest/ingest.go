package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/ingestoor/pkg/archive"
	"github.com/ethpandaops/ingestoor/pkg/config"
	"github.com/ethpandaops/ingestoor/pkg/domain"
	"github.com/ethpandaops/ingestoor/pkg/store"
)

// ErrUnknownProject reports an upload for a project code not in the
// catalogue.
var ErrUnknownProject = errors.New("unknown project")

// incomingDirName holds freshly extracted uploads under the cycle directory.
const incomingDirName = "incoming"

// Service ingests execution archives: extraction, retention, report parsing,
// reconciliation against persisted state and persistence.
type Service interface {
	Start(ctx context.Context) error
	Stop() error

	// IngestArchive validates, retains and extracts an uploaded zip, then
	// indexes the extracted execution. Returns ErrNotZip for invalid
	// payloads and ErrUnknownProject for unknown project codes.
	IngestArchive(ctx context.Context, projectCode, branch, cycle string, data []byte) error

	// IngestDirectory indexes an already extracted execution directory.
	IngestDirectory(ctx context.Context, projectCode, branch, cycle, dir string) error
}

// Compile-time interface check.
var _ Service = (*service)(nil)

type service struct {
	log     logrus.FieldLogger
	cfg     *config.Config
	store   store.Store
	backend archive.Backend

	reconcilersMu sync.Mutex
	reconcilers   map[string]*Reconciler

	// executionLocks serializes ingestion per execution so two uploads of
	// the same job cannot interleave their read-reconcile-save cycles.
	executionLocksMu sync.Mutex
	executionLocks   map[string]*sync.Mutex
}

// NewService creates the ingestion service.
func NewService(
	log logrus.FieldLogger,
	cfg *config.Config,
	st store.Store,
	backend archive.Backend,
) Service {
	return &service{
		log:            log.WithField("component", "ingest"),
		cfg:            cfg,
		store:          st,
		backend:        backend,
		reconcilers:    make(map[string]*Reconciler),
		executionLocks: make(map[string]*sync.Mutex),
	}
}

func (s *service) Start(_ context.Context) error {
	if err := os.MkdirAll(s.cfg.Ingest.ExecutionsDir, 0o755); err != nil {
		return fmt.Errorf("creating executions dir: %w", err)
	}

	s.log.WithField("dir", s.cfg.Ingest.ExecutionsDir).Info("Ingestion service ready")

	return nil
}

func (s *service) Stop() error {
	return nil
}

func (s *service) IngestArchive(
	ctx context.Context,
	projectCode, branch, cycle string,
	data []byte,
) error {
	project, ok := s.cfg.Project(projectCode)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProject, projectCode)
	}

	uploadID := newUploadID(data)

	dir := filepath.Join(
		s.cfg.Ingest.ExecutionsDir,
		project.Code, branch, cycle,
		incomingDirName, uploadID,
	)

	if err := extractZip(data, dir); err != nil {
		return err
	}

	// Retention is best-effort: a failing backend must not lose the upload.
	if s.backend != nil {
		key := fmt.Sprintf("%s/%s/%s/%s.zip", project.Code, branch, cycle, uploadID)
		if err := s.backend.Store(ctx, key, data); err != nil {
			s.log.WithError(err).WithField("key", key).
				Warn("Cannot retain uploaded archive: continuing ingestion")
		}
	}

	return s.IngestDirectory(ctx, projectCode, branch, cycle, dir)
}

func (s *service) IngestDirectory(
	ctx context.Context,
	projectCode, branch, cycle, dir string,
) error {
	project, ok := s.cfg.Project(projectCode)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProject, projectCode)
	}

	log := s.log.WithFields(logrus.Fields{
		"project": project.Code,
		"branch":  branch,
		"cycle":   cycle,
		"dir":     dir,
	})

	rootInfo, err := ReadBuildInformation(
		filepath.Join(dir, project.Indexer.BuildInformationPath))
	if err != nil {
		log.WithError(err).Warn("Unreadable root build information")

		rootInfo = nil
	}

	var jobURL, version string
	if rootInfo != nil {
		jobURL = rootInfo.URL
		version = rootInfo.Version
	}

	unlock := s.lockExecution(project.Code, branch, cycle, jobURL)
	defer unlock()

	existing, err := s.findExisting(ctx, project.Code, jobURL, version)
	if err != nil {
		return err
	}

	completionRequested, err := s.store.HasCompletionRequest(ctx, jobURL)
	if err != nil {
		return err
	}

	execution, err := s.reconciler(project).
		Reconcile(ctx, dir, branch, cycle, existing, completionRequested)
	if err != nil {
		return fmt.Errorf("reconciling execution: %w", err)
	}

	if execution != nil {
		if err := s.store.SaveExecution(ctx, execution); err != nil {
			return fmt.Errorf("persisting execution: %w", err)
		}

		log.WithFields(logrus.Fields{
			"id":      execution.ID,
			"status":  execution.Status,
			"quality": execution.QualityStatus,
		}).Info("Execution indexed")
	}

	// A waiting completion request is consumed by any upload that was
	// persisted, and by re-uploads against an already finished execution.
	if execution != nil || (existing != nil && existing.Status == domain.JobStatusDone) {
		if err := s.store.DeleteCompletionRequest(ctx, jobURL); err != nil {
			log.WithError(err).Warn("Cannot delete completion request")
		}
	}

	// The incoming directory is only removed once the job is finished, so a
	// partial upload stays on disk for the next crawl.
	if project.Indexer.DeleteAfterIndexing && s.isDone(execution, existing) {
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).Warn("Cannot delete indexed directory")
		}
	}

	return nil
}

func (s *service) isDone(execution, existing *store.Execution) bool {
	if execution != nil {
		return execution.Status == domain.JobStatusDone
	}

	return existing != nil && existing.Status == domain.JobStatusDone
}

// findExisting locates the persisted execution this upload belongs to,
// preferring the job URL and falling back to the tested version.
func (s *service) findExisting(
	ctx context.Context, projectCode, jobURL, version string,
) (*store.Execution, error) {
	execution, err := s.store.FindExecutionByJobURL(ctx, projectCode, jobURL)
	if err != nil {
		return nil, err
	}

	if execution != nil {
		return execution, nil
	}

	return s.store.FindExecutionByVersion(ctx, projectCode, version)
}

func (s *service) reconciler(project *config.ProjectConfig) *Reconciler {
	s.reconcilersMu.Lock()
	defer s.reconcilersMu.Unlock()

	if r, ok := s.reconcilers[project.Code]; ok {
		return r
	}

	r := NewReconciler(s.log, project, s.cfg.Ingest.Concurrency)
	s.reconcilers[project.Code] = r

	return r
}

// lockExecution acquires the per-execution mutex. Executions without a job
// URL fall back to the cycle path as key.
func (s *service) lockExecution(projectCode, branch, cycle, jobURL string) func() {
	key := projectCode + "|" + jobURL
	if jobURL == "" {
		key = projectCode + "|" + branch + "|" + cycle
	}

	s.executionLocksMu.Lock()

	mu, ok := s.executionLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.executionLocks[key] = mu
	}

	s.executionLocksMu.Unlock()

	mu.Lock()

	return mu.Unlock
}

// newUploadID derives a unique directory name for one upload from its
// content and arrival time.
func newUploadID(data []byte) string {
	sum := sha256.Sum256(data)

	return fmt.Sprintf("%d-%s",
		time.Now().UTC().UnixMilli(), hex.EncodeToString(sum[:6]))
}

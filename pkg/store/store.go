// Package store persists executions and their child entities behind a single
// interface, backed by SQLite or PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ethpandaops/ingestoor/pkg/config"
)

// Store provides persistence for executions and completion requests.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Execution lookups, returning (nil, nil) when no row matches.
	FindExecutionByJobURL(ctx context.Context, project, jobURL string) (*Execution, error)
	FindExecutionByVersion(ctx context.Context, project, version string) (*Execution, error)
	GetExecution(ctx context.Context, project string, id uint) (*Execution, error)
	ListExecutions(ctx context.Context, project string, limit int) ([]Execution, error)

	// SaveExecution inserts or updates an execution in one transaction,
	// replacing its run and country-deployment collections wholesale.
	SaveExecution(ctx context.Context, execution *Execution) error

	// Completion requests.
	CreateCompletionRequest(ctx context.Context, jobURL string) error
	HasCompletionRequest(ctx context.Context, jobURL string) (bool, error)
	DeleteCompletionRequest(ctx context.Context, jobURL string) error
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB

	// dbMu serializes writes: SQLite only supports a single writer.
	dbMu sync.Mutex
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Execution{},
		&CountryDeployment{},
		&Run{},
		&ExecutedScenario{},
		&Error{},
		&ExecutionCompletionRequest{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// --- Execution lookups ---

func (s *store) FindExecutionByJobURL(
	ctx context.Context, project, jobURL string,
) (*Execution, error) {
	if jobURL == "" {
		return nil, nil
	}

	return s.findExecution(ctx, "project_code = ? AND job_url = ?", project, jobURL)
}

func (s *store) FindExecutionByVersion(
	ctx context.Context, project, version string,
) (*Execution, error) {
	if version == "" {
		return nil, nil
	}

	return s.findExecution(ctx, "project_code = ? AND version = ?", project, version)
}

func (s *store) findExecution(
	ctx context.Context, query string, args ...any,
) (*Execution, error) {
	var execution Execution
	if err := s.preloaded(ctx).
		Where(query, args...).
		First(&execution).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("finding execution: %w", err)
	}

	return &execution, nil
}

func (s *store) GetExecution(
	ctx context.Context, project string, id uint,
) (*Execution, error) {
	var execution Execution
	if err := s.preloaded(ctx).
		Where("project_code = ?", project).
		First(&execution, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting execution %d: %w", id, err)
	}

	return &execution, nil
}

func (s *store) ListExecutions(
	ctx context.Context, project string, limit int,
) ([]Execution, error) {
	var executions []Execution

	q := s.db.WithContext(ctx).
		Where("project_code = ?", project).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&executions).Error; err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}

	return executions, nil
}

func (s *store) preloaded(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("CountryDeployments").
		Preload("Runs").
		Preload("Runs.ExecutedScenarios").
		Preload("Runs.ExecutedScenarios.Errors")
}

// --- Saving ---

// SaveExecution writes the execution and its full child tree in one
// transaction. Child collections are replaced, not merged: existing runs,
// scenarios, errors and country deployments of the execution are dropped and
// the in-memory tree is inserted in their place, so partial state is never
// visible to readers.
func (s *store) SaveExecution(ctx context.Context, execution *Execution) error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if execution.ID != 0 {
			if err := deleteChildren(tx, execution.ID); err != nil {
				return err
			}

			// Children keep no stale primary keys: they are re-inserted.
			for i := range execution.Runs {
				resetRunIDs(&execution.Runs[i])
			}

			for i := range execution.CountryDeployments {
				execution.CountryDeployments[i].ID = 0
				execution.CountryDeployments[i].ExecutionID = 0
			}
		}

		if err := tx.Session(&gorm.Session{FullSaveAssociations: true}).
			Save(execution).Error; err != nil {
			return fmt.Errorf("saving execution: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	return nil
}

func resetRunIDs(run *Run) {
	run.ID = 0
	run.ExecutionID = 0

	for i := range run.ExecutedScenarios {
		run.ExecutedScenarios[i].ID = 0
		run.ExecutedScenarios[i].RunID = 0

		for j := range run.ExecutedScenarios[i].Errors {
			run.ExecutedScenarios[i].Errors[j].ID = 0
			run.ExecutedScenarios[i].Errors[j].ExecutedScenarioID = 0
		}
	}
}

func deleteChildren(tx *gorm.DB, executionID uint) error {
	runIDs := tx.Model(&Run{}).Select("id").Where("execution_id = ?", executionID)
	scenarioIDs := tx.Model(&ExecutedScenario{}).Select("id").Where("run_id IN (?)", runIDs)

	if err := tx.Where("executed_scenario_id IN (?)", scenarioIDs).
		Delete(&Error{}).Error; err != nil {
		return fmt.Errorf("deleting errors: %w", err)
	}

	if err := tx.Where("run_id IN (?)", runIDs).
		Delete(&ExecutedScenario{}).Error; err != nil {
		return fmt.Errorf("deleting executed scenarios: %w", err)
	}

	if err := tx.Where("execution_id = ?", executionID).
		Delete(&Run{}).Error; err != nil {
		return fmt.Errorf("deleting runs: %w", err)
	}

	if err := tx.Where("execution_id = ?", executionID).
		Delete(&CountryDeployment{}).Error; err != nil {
		return fmt.Errorf("deleting country deployments: %w", err)
	}

	return nil
}

// --- Completion requests ---

func (s *store) CreateCompletionRequest(ctx context.Context, jobURL string) error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	req := ExecutionCompletionRequest{JobURL: jobURL}
	if err := s.db.WithContext(ctx).
		Where("job_url = ?", jobURL).
		FirstOrCreate(&req).Error; err != nil {
		return fmt.Errorf("creating completion request: %w", err)
	}

	return nil
}

func (s *store) HasCompletionRequest(ctx context.Context, jobURL string) (bool, error) {
	if jobURL == "" {
		return false, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&ExecutionCompletionRequest{}).
		Where("job_url = ?", jobURL).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("counting completion requests: %w", err)
	}

	return count > 0, nil
}

func (s *store) DeleteCompletionRequest(ctx context.Context, jobURL string) error {
	if jobURL == "" {
		return nil
	}

	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	if err := s.db.WithContext(ctx).
		Where("job_url = ?", jobURL).
		Delete(&ExecutionCompletionRequest{}).Error; err != nil {
		return fmt.Errorf("deleting completion request: %w", err)
	}

	return nil
}

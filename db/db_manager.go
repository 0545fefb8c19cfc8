package db

import (
	"context"
	"log"
	"time"

	"biolink/internal/util"
	"biolink/models"
)

// Operation represents a database operation that needs to be executed
type Operation struct {
	Execute func() error
	Result  chan error
}

// OperationWithResult represents a database operation that returns a result
type OperationWithResult struct {
	Execute func() (interface{}, error)
	Result  chan OperationResult
}

// OperationResult contains the result of an operation
type OperationResult struct {
	Data  interface{}
	Error error
}

// DBManager manages serialized access to the database
type DBManager struct {
	opQueue       chan Operation
	resultOpQueue chan OperationWithResult
	stopping      chan struct{}
}

// NewDBManager creates a new database manager
func NewDBManager() *DBManager {
	m := &DBManager{
		opQueue:       make(chan Operation, 100),
		resultOpQueue: make(chan OperationWithResult, 100),
		stopping:      make(chan struct{}),
	}

	// Start the worker goroutine
	go m.worker()
	log.Println("Database access manager started")

	return m
}

// worker processes operations one at a time
func (m *DBManager) worker() {
	for {
		select {
		case op := <-m.opQueue:
			op.Result <- util.RetryOnLock(op.Execute)
		case op := <-m.resultOpQueue:
			data, err := util.RetryOnLockWithResult(op.Execute)
			op.Result <- OperationResult{Data: data, Error: err}
		case <-m.stopping:
			return
		}
	}
}

// ExecuteOperation executes a database operation with retries
func (m *DBManager) ExecuteOperation(execute func() error) error {
	resultChan := make(chan error, 1)
	m.opQueue <- Operation{
		Execute: execute,
		Result:  resultChan,
	}
	return <-resultChan
}

// ExecuteOperationWithResult executes a database operation that returns a result with retries
func (m *DBManager) ExecuteOperationWithResult(execute func() (interface{}, error)) (interface{}, error) {
	resultChan := make(chan OperationResult, 1)
	m.resultOpQueue <- OperationWithResult{
		Execute: execute,
		Result:  resultChan,
	}
	result := <-resultChan
	return result.Data, result.Error
}

// Stop stops the database manager
func (m *DBManager) Stop() {
	close(m.stopping)
}

// Methods for specific repository operations

// CreateSettings serializes creation of a settings document
func (m *DBManager) CreateSettings(repo SettingsRepository, ctx context.Context, settings *models.Settings) error {
	return m.ExecuteOperation(func() error {
		return repo.Create(ctx, settings)
	})
}

// UpdateSettings serializes settings updates
func (m *DBManager) UpdateSettings(repo SettingsRepository, ctx context.Context, settings *models.Settings) error {
	return m.ExecuteOperation(func() error {
		return repo.Update(ctx, settings)
	})
}

// SaveTwoFactor serializes writes of the two factor row
func (m *DBManager) SaveTwoFactor(repo TwoFactorRepository, ctx context.Context, tf *models.TwoFactor) error {
	return m.ExecuteOperation(func() error {
		return repo.Save(ctx, tf)
	})
}

// ReplaceBackupCodes serializes backup code rotation
func (m *DBManager) ReplaceBackupCodes(repo TwoFactorRepository, ctx context.Context, userID string, hashes []string) error {
	return m.ExecuteOperation(func() error {
		return repo.ReplaceBackupCodes(ctx, userID, hashes)
	})
}

// MarkBackupCodeUsed serializes consumption of a backup code
func (m *DBManager) MarkBackupCodeUsed(repo TwoFactorRepository, ctx context.Context, id int64) error {
	return m.ExecuteOperation(func() error {
		return repo.MarkBackupCodeUsed(ctx, id, time.Now())
	})
}

// ClearPendingBefore serializes the pending secret sweep
func (m *DBManager) ClearPendingBefore(repo TwoFactorRepository, ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := m.ExecuteOperationWithResult(func() (interface{}, error) {
		return repo.ClearPendingBefore(ctx, cutoff)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

// CreateAsset serializes asset record creation
func (m *DBManager) CreateAsset(repo AssetRepository, ctx context.Context, asset *models.Asset) error {
	return m.ExecuteOperation(func() error {
		return repo.Create(ctx, asset)
	})
}

// CreateEventLog serializes access to event log creation
func (m *DBManager) CreateEventLog(repo EventLogRepository, ctx context.Context, eventLog *models.EventLog) error {
	return m.ExecuteOperation(func() error {
		return repo.Create(ctx, eventLog)
	})
}

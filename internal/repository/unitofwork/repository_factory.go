package unitofwork

import "context"

// RepositoryFactory opens a UnitOfWork over either the gorm or the in-memory
// store. Every stage handler gets one per call.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}

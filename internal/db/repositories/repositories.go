package repositories

import "github.com/jmoiron/sqlx"

// Repositories bundles every repository over one connection pool so the router
// can treat PostgreSQL and the in-memory store interchangeably.
type Repositories struct {
	*UserRepository
	*APIKeyRepository
	*RequestRepository
	*AuditRepository
}

// New builds all repositories over db
func New(db *sqlx.DB) *Repositories {
	return &Repositories{
		UserRepository:    NewUserRepository(db),
		APIKeyRepository:  NewAPIKeyRepository(db),
		RequestRepository: NewRequestRepository(db),
		AuditRepository:   NewAuditRepository(db),
	}
}

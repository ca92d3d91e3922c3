package domain

import (
	"context"
)

// LiteratureSearchPort is the external literature search collaborator. The
// aggregator only depends on this interface; the concrete client is wired by
// the surrounding application. Implementations must honor the caller's
// context deadline and wrap backend failures in SearchUnavailableError.
type LiteratureSearchPort interface {
	Find(ctx context.Context, query SearchQuery) ([]StudyRecord, error)
}

// SynthesisStore persists protocol evidence syntheses. Persistence is
// fire-and-forget from the engine's perspective: a save failure must never
// affect the result returned to the caller.
type SynthesisStore interface {
	Save(ctx context.Context, synthesis *ProtocolEvidenceSynthesis) error
	GetByID(ctx context.Context, id string) (*ProtocolEvidenceSynthesis, error)
	ListByCondition(ctx context.Context, condition string, limit, offset int) ([]*ProtocolEvidenceSynthesis, error)
}

// AssessmentStore persists patient risk assessments.
type AssessmentStore interface {
	Save(ctx context.Context, assessment *RiskAssessment) error
	GetByID(ctx context.Context, id string) (*RiskAssessment, error)
}

// ConfigManager exposes typed configuration to the application layers.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetSearchConfig() *SearchConfig
	Validate() error
	GetDatabaseConnectionString() string
	IsProduction() bool
}

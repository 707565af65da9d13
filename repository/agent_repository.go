package repository

import (
	"context"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AgentRepository handles database operations for agents
type AgentRepository struct {
	db *pgxpool.Pool
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{db: db}
}

// Create creates a new agent
func (r *AgentRepository) Create(ctx context.Context, agent *models.Agent) error {
	query := `
		INSERT INTO agents (email, passcode_hash, name, agency_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		agent.Email,
		agent.PasscodeHash,
		agent.Name,
		agent.AgencyName,
	).Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt)

	return err
}

// GetByID retrieves an agent by ID
func (r *AgentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	agent := &models.Agent{}
	query := `
		SELECT id, email, passcode_hash, name, agency_name, created_at, updated_at
		FROM agents
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&agent.ID,
		&agent.Email,
		&agent.PasscodeHash,
		&agent.Name,
		&agent.AgencyName,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return agent, nil
}

// GetByEmail retrieves an agent by email
func (r *AgentRepository) GetByEmail(ctx context.Context, email string) (*models.Agent, error) {
	agent := &models.Agent{}
	query := `
		SELECT id, email, passcode_hash, name, agency_name, created_at, updated_at
		FROM agents
		WHERE email = $1`

	err := r.db.QueryRow(ctx, query, email).Scan(
		&agent.ID,
		&agent.Email,
		&agent.PasscodeHash,
		&agent.Name,
		&agent.AgencyName,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return agent, nil
}

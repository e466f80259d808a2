// Package file provides file-based persistence for sessions and flow snapshots.
package file

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root        string
	sessionRepo *SessionRepository
	flowRepo    *FlowRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:        cleanRoot,
		sessionRepo: NewSessionRepository(cleanRoot),
		flowRepo:    NewFlowRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) SessionRepository() persistence.SessionRepository {
	return fp.sessionRepo
}

func (fp *Persistence) FlowRepository() persistence.FlowRepository {
	return fp.flowRepo
}

// SessionRepository stores one JSON document per session under <root>/sessions.
type SessionRepository struct {
	dir *jsonDir[models.Session]
}

func NewSessionRepository(root string) *SessionRepository {
	return &SessionRepository{dir: newJSONDir[models.Session](root, "sessions", persistence.ErrSessionNotFound)}
}

func (sr *SessionRepository) Save(_ context.Context, session *models.Session) error {
	if err := sr.dir.save(session.ID, session); err != nil {
		return persistence.NewSessionError("Save", session.ID, err)
	}

	return nil
}

func (sr *SessionRepository) ByID(_ context.Context, id string) (*models.Session, error) {
	session, err := sr.dir.load(id)
	if err != nil {
		return nil, persistence.NewSessionError("ByID", id, err)
	}

	return session, nil
}

func (sr *SessionRepository) Delete(_ context.Context, id string) error {
	if err := sr.dir.remove(id); err != nil {
		return persistence.NewSessionError("Delete", id, err)
	}

	return nil
}

func (sr *SessionRepository) IdleIDs(_ context.Context, before time.Time) ([]string, error) {
	return sr.dir.idle(before, func(s *models.Session) time.Time { return s.UpdatedAt })
}

// FlowRepository stores one JSON document per flow under <root>/flows.
type FlowRepository struct {
	dir *jsonDir[models.StepState]
}

func NewFlowRepository(root string) *FlowRepository {
	return &FlowRepository{dir: newJSONDir[models.StepState](root, "flows", persistence.ErrFlowNotFound)}
}

func (fr *FlowRepository) Save(_ context.Context, state *models.StepState) error {
	if err := fr.dir.save(state.ID, state); err != nil {
		return persistence.NewFlowError("Save", state.ID, err)
	}

	return nil
}

func (fr *FlowRepository) ByID(_ context.Context, id string) (*models.StepState, error) {
	state, err := fr.dir.load(id)
	if err != nil {
		return nil, persistence.NewFlowError("ByID", id, err)
	}

	return state, nil
}

func (fr *FlowRepository) Delete(_ context.Context, id string) error {
	if err := fr.dir.remove(id); err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	return nil
}

func (fr *FlowRepository) IdleIDs(_ context.Context, before time.Time) ([]string, error) {
	return fr.dir.idle(before, func(s *models.StepState) time.Time { return s.UpdatedAt })
}

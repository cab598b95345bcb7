package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/prudhvinik1/livesync/internal/models"
	"github.com/prudhvinik1/livesync/internal/repositories"
)

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[string]*models.Account)}
}

func (m *memAccounts) Create(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	cp := *a
	m.accounts[a.Email] = &cp
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[email]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) Update(context.Context, *models.Account) error { return nil }
func (m *memAccounts) Delete(context.Context, uuid.UUID) error       { return nil }

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*models.Session)}
}

func (m *memSessions) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessions) GetByID(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) ListByAccountID(_ context.Context, accountID uuid.UUID) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Session
	for _, s := range m.sessions {
		if s.AccountID == accountID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) DeleteAllForAccount(_ context.Context, accountID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.AccountID == accountID {
			delete(m.sessions, id)
		}
	}
	return nil
}

type memRows struct {
	mu   sync.Mutex
	rows map[string]map[string]models.Row
	err  error
}

func newMemRows() *memRows {
	return &memRows{rows: make(map[string]map[string]models.Row)}
}

func (m *memRows) table(name string) map[string]models.Row {
	if m.rows[name] == nil {
		m.rows[name] = make(map[string]models.Row)
	}
	return m.rows[name]
}

func matches(r models.Row, ownerID string, match models.Row) bool {
	if r.RecordOwner() != ownerID {
		return false
	}
	for k, v := range match {
		if r[k] != v {
			return false
		}
	}
	return true
}

func (m *memRows) ListByOwner(_ context.Context, t models.Table, ownerID string) ([]models.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Row
	for _, r := range m.table(t.Name) {
		if r.RecordOwner() == ownerID {
			out = append(out, r.Clone())
		}
	}
	return out, m.err
}

func (m *memRows) GetByID(_ context.Context, t models.Table, ownerID, id string) (models.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.table(t.Name)[id]
	if !ok || r.RecordOwner() != ownerID {
		return nil, repositories.ErrNotFound
	}
	return r.Clone(), nil
}

func (m *memRows) Insert(_ context.Context, t models.Table, row models.Row) (models.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.table(t.Name)[row.RecordID()] = row.Clone()
	return row.Clone(), nil
}

func (m *memRows) Update(_ context.Context, t models.Table, ownerID, id string, fields models.Row) (models.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.table(t.Name)[id]
	if !ok || r.RecordOwner() != ownerID {
		return nil, repositories.ErrNotFound
	}
	for k, v := range fields {
		if k != models.IDField && k != models.OwnerField {
			r[k] = v
		}
	}
	return r.Clone(), nil
}

func (m *memRows) Delete(_ context.Context, t models.Table, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.table(t.Name)[id]
	if !ok || r.RecordOwner() != ownerID {
		return repositories.ErrNotFound
	}
	delete(m.table(t.Name), id)
	return nil
}

func (m *memRows) UpdateWhere(_ context.Context, t models.Table, ownerID string, match, fields models.Row) ([]models.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var changed []models.Row
	for _, r := range m.table(t.Name) {
		if !matches(r, ownerID, match) {
			continue
		}
		for k, v := range fields {
			r[k] = v
		}
		changed = append(changed, r.Clone())
	}
	return changed, nil
}

func (m *memRows) Count(_ context.Context, t models.Table, ownerID string, match models.Row) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.table(t.Name) {
		if matches(r, ownerID, match) {
			n++
		}
	}
	return n, m.err
}

func (m *memRows) Upsert(_ context.Context, t models.Table, row models.Row) (models.Row, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	for _, r := range m.table(t.Name) {
		if r[t.UpsertKey] == row[t.UpsertKey] {
			for k, v := range row {
				if k != models.IDField {
					r[k] = v
				}
			}
			return r.Clone(), false, nil
		}
	}
	m.table(t.Name)[row.RecordID()] = row.Clone()
	return row.Clone(), true, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent[models.Row]
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.ChangeEvent[models.Row]) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) published() []models.ChangeEvent[models.Row] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ChangeEvent[models.Row](nil), p.events...)
}

package api

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/prudhvinik1/livesync/internal/models"
	"github.com/prudhvinik1/livesync/internal/repositories"
	"github.com/prudhvinik1/livesync/internal/services"
	"github.com/prudhvinik1/livesync/internal/synchronizer"
)

const goodToken = "good-token"

var testAccount = uuid.MustParse("6b0f7c1e-2a8d-4f3b-9c55-1d2e3f4a5b6c")

type fakeAuth struct {
	mu       sync.Mutex
	accounts map[string]string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{accounts: make(map[string]string)}
}

func (f *fakeAuth) Register(_ context.Context, email, password string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; ok {
		return nil, services.ErrEmailExists
	}
	f.accounts[email] = password
	return &models.Account{ID: testAccount, Email: email}, nil
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*services.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.accounts[email]; !ok || pw != password {
		return nil, services.ErrInvalidCredentials
	}
	return &services.LoginResponse{Token: goodToken, AccountID: testAccount}, nil
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	if token != goodToken {
		return services.ErrInvalidToken
	}
	return nil
}

func (f *fakeAuth) LogoutAll(ctx context.Context, token string) error {
	return f.Logout(ctx, token)
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*services.TokenClaims, error) {
	if token != goodToken {
		return nil, services.ErrInvalidToken
	}
	return &services.TokenClaims{AccountID: testAccount, SessionID: "s1"}, nil
}

type fakeRows struct {
	mu        sync.Mutex
	rows      map[string]models.Row
	prefs     models.Row
	createErr error
}

func newFakeRows() *fakeRows {
	return &fakeRows{rows: make(map[string]models.Row)}
}

func (f *fakeRows) List(_ context.Context, table, ownerID string) ([]models.Row, error) {
	if _, err := models.LookupTable(table); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Row
	for _, r := range f.rows {
		if r.RecordOwner() == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRows) Create(_ context.Context, table, ownerID string, fields models.Row) (models.Row, error) {
	if _, err := models.LookupTable(table); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	row := fields.Clone()
	row[models.IDField] = uuid.NewString()
	row[models.OwnerField] = ownerID
	f.rows[row.RecordID()] = row
	return row, nil
}

func (f *fakeRows) Update(_ context.Context, _, ownerID, id string, fields models.Row) (models.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.RecordOwner() != ownerID {
		return nil, repositories.ErrNotFound
	}
	for k, v := range fields {
		row[k] = v
	}
	return row, nil
}

func (f *fakeRows) Delete(_ context.Context, _, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.RecordOwner() != ownerID {
		return repositories.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeRows) unread(ownerID string) []models.Row {
	var out []models.Row
	for _, r := range f.rows {
		if r.RecordOwner() == ownerID && r["read"] == false {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeRows) UnreadCount(_ context.Context, ownerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.unread(ownerID)), nil
}

func (f *fakeRows) MarkAllRead(_ context.Context, ownerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.unread(ownerID)
	for _, r := range rows {
		r["read"] = true
	}
	return len(rows), nil
}

func (f *fakeRows) Preferences(context.Context, string) (models.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs, nil
}

func (f *fakeRows) SavePreferences(_ context.Context, ownerID string, fields models.Row) (models.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prefs == nil {
		f.prefs = models.Row{models.IDField: uuid.NewString()}
	}
	for k, v := range fields {
		f.prefs[k] = v
	}
	f.prefs[models.OwnerField] = ownerID
	return f.prefs.Clone(), nil
}

// chanSource serves fixed rows and hands each stream to the test.
type chanSource struct {
	rows    []models.Row
	streams chan *chanStream
}

func newChanSource(rows ...models.Row) *chanSource {
	return &chanSource{rows: rows, streams: make(chan *chanStream, 4)}
}

func (c *chanSource) Query(context.Context, string, string) ([]models.Row, error) {
	return c.rows, nil
}

func (c *chanSource) Subscribe(context.Context, string, string) (synchronizer.Stream[models.Row], error) {
	s := &chanStream{events: make(chan models.ChangeEvent[models.Row], 8)}
	c.streams <- s
	return s, nil
}

type chanStream struct {
	events chan models.ChangeEvent[models.Row]
}

func (s *chanStream) Events() <-chan models.ChangeEvent[models.Row] { return s.events }
func (s *chanStream) Err() error                                    { return nil }
func (s *chanStream) Unsubscribe()                                  {}

type fakeSessions struct {
	states chan models.SessionState
}

func (f *fakeSessions) Watch(context.Context, string) <-chan models.SessionState {
	return f.states
}

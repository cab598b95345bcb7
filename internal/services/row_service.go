package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/prudhvinik1/livesync/internal/logging"
	"github.com/prudhvinik1/livesync/internal/models"
	"github.com/prudhvinik1/livesync/internal/repositories"
)

var ErrNoPrincipal = errors.New("no principal")

// ChangePublisher fans row changes out to live subscribers.
type ChangePublisher interface {
	Publish(ctx context.Context, ev models.ChangeEvent[models.Row]) error
}

// RowService writes dashboard rows on behalf of a principal and announces
// every successful write on the change feed.
type RowService struct {
	rows      repositories.RowRepository
	publisher ChangePublisher
	clock     clock.Clock
	logger    *zap.Logger
}

func NewRowService(rows repositories.RowRepository, publisher ChangePublisher, clk clock.Clock, logger *zap.Logger) *RowService {
	if clk == nil {
		clk = clock.WallClock
	}
	return &RowService{rows: rows, publisher: publisher, clock: clk, logger: logging.OrNop(logger)}
}

func (s *RowService) List(ctx context.Context, table, ownerID string) ([]models.Row, error) {
	t, err := lookup(table, ownerID)
	if err != nil {
		return nil, err
	}
	return s.rows.ListByOwner(ctx, t, ownerID)
}

// Create inserts fields as a new row owned by ownerID. A missing id is
// generated; any owner in fields is overwritten. Tables with an upsert key
// merge into the existing row instead of failing on the duplicate.
func (s *RowService) Create(ctx context.Context, table, ownerID string, fields models.Row) (models.Row, error) {
	t, err := lookup(table, ownerID)
	if err != nil {
		return nil, err
	}

	row := fields.Clone()
	if row.RecordID() == "" {
		row[models.IDField] = uuid.NewString()
	}
	row[models.OwnerField] = ownerID

	if t.Name == models.BudgetsTable {
		if err := s.fillBudgetPeriod(row); err != nil {
			return nil, err
		}
	}

	if t.UpsertKey != "" {
		return s.upsert(ctx, t, row)
	}

	stored, err := s.rows.Insert(ctx, t, row)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.Created(t.Name, stored))
	return stored, nil
}

func (s *RowService) upsert(ctx context.Context, t models.Table, row models.Row) (models.Row, error) {
	// Every upsert table tracks its last write.
	row["updated_at"] = s.clock.Now().UTC().Format(time.RFC3339Nano)

	stored, inserted, err := s.rows.Upsert(ctx, t, row)
	if err != nil {
		return nil, err
	}
	if inserted {
		s.publish(ctx, models.Created(t.Name, stored))
	} else {
		s.publish(ctx, models.Updated(t.Name, stored))
	}
	return stored, nil
}

// fillBudgetPeriod derives period_start and period_end from period when
// the caller left them out.
func (s *RowService) fillBudgetPeriod(row models.Row) error {
	raw, ok := row["period"]
	if !ok {
		return nil
	}
	period, ok := raw.(string)
	if !ok {
		return fmt.Errorf("%w: period must be a string", repositories.ErrInvalidRow)
	}
	start, end, err := BudgetPeriod(period, s.clock.Now())
	if err != nil {
		return err
	}
	if _, ok := row["period_start"]; !ok {
		row["period_start"] = start
	}
	if _, ok := row["period_end"]; !ok {
		row["period_end"] = end
	}
	return nil
}

// Preferences returns the owner's dashboard preferences, or nil when none
// were saved yet.
func (s *RowService) Preferences(ctx context.Context, ownerID string) (models.Row, error) {
	t, err := lookup(models.PreferencesTable, ownerID)
	if err != nil {
		return nil, err
	}
	rows, err := s.rows.ListByOwner(ctx, t, ownerID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *RowService) SavePreferences(ctx context.Context, ownerID string, fields models.Row) (models.Row, error) {
	return s.Create(ctx, models.PreferencesTable, ownerID, fields)
}

func (s *RowService) UnreadCount(ctx context.Context, ownerID string) (int, error) {
	t, err := lookup(models.NotificationsTable, ownerID)
	if err != nil {
		return 0, err
	}
	return s.rows.Count(ctx, t, ownerID, models.Row{"read": false})
}

// MarkAllRead flags every unread notification of ownerID as read and
// publishes one update per changed row. It returns how many changed.
func (s *RowService) MarkAllRead(ctx context.Context, ownerID string) (int, error) {
	t, err := lookup(models.NotificationsTable, ownerID)
	if err != nil {
		return 0, err
	}

	changed, err := s.rows.UpdateWhere(ctx, t, ownerID, models.Row{"read": false}, models.Row{"read": true})
	if err != nil {
		return 0, err
	}
	for _, row := range changed {
		s.publish(ctx, models.Updated(t.Name, row))
	}
	return len(changed), nil
}

func (s *RowService) Update(ctx context.Context, table, ownerID, id string, fields models.Row) (models.Row, error) {
	t, err := lookup(table, ownerID)
	if err != nil {
		return nil, err
	}

	stored, err := s.rows.Update(ctx, t, ownerID, id, fields)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.Updated(t.Name, stored))
	return stored, nil
}

func (s *RowService) Delete(ctx context.Context, table, ownerID, id string) error {
	t, err := lookup(table, ownerID)
	if err != nil {
		return err
	}

	if err := s.rows.Delete(ctx, t, ownerID, id); err != nil {
		return err
	}
	s.publish(ctx, models.Deleted[models.Row](t.Name, id, ownerID))
	return nil
}

// publish never fails the write: subscribers that miss the event catch up
// on their next bulk load.
func (s *RowService) publish(ctx context.Context, ev models.ChangeEvent[models.Row]) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish change",
			zap.String("table", ev.Table),
			zap.String("kind", string(ev.Kind)),
			zap.String("id", ev.Key()),
			zap.Error(err))
	}
}

func lookup(table, ownerID string) (models.Table, error) {
	if ownerID == "" {
		return models.Table{}, ErrNoPrincipal
	}
	return models.LookupTable(table)
}

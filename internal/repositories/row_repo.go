package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/livesync/internal/models"
)

// ErrInvalidRow is returned when a write carries no usable columns or
// values the table cannot hold.
var ErrInvalidRow = errors.New("invalid row")

var errNoFields = fmt.Errorf("%w: no writable fields", ErrInvalidRow)

// PostgresRowRepository reads and writes dashboard rows without a fixed
// schema: rows travel as JSON objects built by row_to_json.
type PostgresRowRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRowRepository(pool *pgxpool.Pool) *PostgresRowRepository {
	return &PostgresRowRepository{pool: pool}
}

func (r *PostgresRowRepository) ListByOwner(ctx context.Context, table models.Table, ownerID string) ([]models.Row, error) {
	query := fmt.Sprintf(`SELECT row_to_json(t) FROM %s AS t
	          WHERE t.%s = $1
	          ORDER BY t.%s DESC`,
		ident(table.Name), ident(models.OwnerField), ident(table.OrderBy))

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table.Name, err)
	}
	defer rows.Close()

	result := make([]models.Row, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table.Name, err)
		}
		row, err := decodeRow(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table.Name, err)
	}

	return result, nil
}

func (r *PostgresRowRepository) GetByID(ctx context.Context, table models.Table, ownerID, id string) (models.Row, error) {
	query := fmt.Sprintf(`SELECT row_to_json(t) FROM %s AS t
	          WHERE t.%s = $1 AND t.%s = $2`,
		ident(table.Name), ident(models.IDField), ident(models.OwnerField))

	var raw []byte
	err := r.pool.QueryRow(ctx, query, id, ownerID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s row: %w", table.Name, err)
	}
	return decodeRow(raw)
}

// Insert writes row and returns it as stored, defaults included.
func (r *PostgresRowRepository) Insert(ctx context.Context, table models.Table, row models.Row) (models.Row, error) {
	cols, args, err := columns(row)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errNoFields
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`INSERT INTO %s AS t (%s) VALUES (%s) RETURNING row_to_json(t)`,
		ident(table.Name), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	var raw []byte
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return nil, writeError("insert", table, err)
	}
	return decodeRow(raw)
}

// Update applies fields to the row with the given id owned by ownerID.
// The id and owner columns are never rewritten.
func (r *PostgresRowRepository) Update(ctx context.Context, table models.Table, ownerID, id string, fields models.Row) (models.Row, error) {
	fields = fields.Clone()
	delete(fields, models.IDField)
	delete(fields, models.OwnerField)

	cols, args, err := columns(fields)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errNoFields
	}

	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args = append(args, id, ownerID)

	query := fmt.Sprintf(`UPDATE %s AS t SET %s
	          WHERE t.%s = $%d AND t.%s = $%d
	          RETURNING row_to_json(t)`,
		ident(table.Name), strings.Join(sets, ", "),
		ident(models.IDField), len(args)-1, ident(models.OwnerField), len(args))

	var raw []byte
	err = r.pool.QueryRow(ctx, query, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, writeError("update", table, err)
	}
	return decodeRow(raw)
}

// UpdateWhere applies fields to every row of ownerID whose columns equal
// match and returns the rows it changed.
func (r *PostgresRowRepository) UpdateWhere(ctx context.Context, table models.Table, ownerID string, match, fields models.Row) ([]models.Row, error) {
	fields = fields.Clone()
	delete(fields, models.IDField)
	delete(fields, models.OwnerField)

	cols, args, err := columns(fields)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errNoFields
	}
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}

	where, args, err := conditions(ownerID, match, args)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`UPDATE %s AS t SET %s WHERE %s RETURNING row_to_json(t)`,
		ident(table.Name), strings.Join(sets, ", "), where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, writeError("update", table, err)
	}
	defer rows.Close()

	result := make([]models.Row, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table.Name, err)
		}
		row, err := decodeRow(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, writeError("update", table, err)
	}
	return result, nil
}

// Count returns how many rows of ownerID have columns equal to match.
func (r *PostgresRowRepository) Count(ctx context.Context, table models.Table, ownerID string, match models.Row) (int, error) {
	where, args, err := conditions(ownerID, match, nil)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s AS t WHERE %s`, ident(table.Name), where)

	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, writeError("count", table, err)
	}
	return n, nil
}

// Upsert inserts row or, when a row with the same table.UpsertKey exists,
// overwrites its columns. It reports whether a new row was created.
func (r *PostgresRowRepository) Upsert(ctx context.Context, table models.Table, row models.Row) (models.Row, bool, error) {
	if table.UpsertKey == "" {
		return nil, false, fmt.Errorf("%w: %s does not support upserts", ErrInvalidRow, table.Name)
	}
	if _, ok := row[table.UpsertKey]; !ok {
		return nil, false, fmt.Errorf("%w: missing %s", ErrInvalidRow, table.UpsertKey)
	}

	cols, args, err := columns(row)
	if err != nil {
		return nil, false, err
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	// The id of an existing row is kept. Touching the key column keeps
	// RETURNING populated when there is nothing else to set.
	key := ident(table.UpsertKey)
	sets := []string{fmt.Sprintf("%s = EXCLUDED.%s", key, key)}
	for _, col := range cols {
		if col != key && col != ident(models.IDField) {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	query := fmt.Sprintf(`INSERT INTO %s AS t (%s) VALUES (%s)
	          ON CONFLICT (%s) DO UPDATE SET %s
	          RETURNING row_to_json(t), (xmax = 0)`,
		ident(table.Name), strings.Join(cols, ", "), strings.Join(placeholders, ", "),
		key, strings.Join(sets, ", "))

	var (
		raw      []byte
		inserted bool
	)
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&raw, &inserted); err != nil {
		return nil, false, writeError("upsert", table, err)
	}
	stored, err := decodeRow(raw)
	if err != nil {
		return nil, false, err
	}
	return stored, inserted, nil
}

func (r *PostgresRowRepository) Delete(ctx context.Context, table models.Table, ownerID, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`,
		ident(table.Name), ident(models.IDField), ident(models.OwnerField))

	result, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete %s row: %w", table.Name, err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// conditions builds an owner scoped WHERE clause with one equality per
// match column. Placeholders continue after args.
func conditions(ownerID string, match models.Row, args []any) (string, []any, error) {
	args = append(args, ownerID)
	clauses := []string{fmt.Sprintf("t.%s = $%d", ident(models.OwnerField), len(args))}

	cols, values, err := columns(match)
	if err != nil {
		return "", nil, err
	}
	for i, col := range cols {
		args = append(args, values[i])
		clauses = append(clauses, fmt.Sprintf("t.%s = $%d", col, len(args)))
	}
	return strings.Join(clauses, " AND "), args, nil
}

// writeError wraps a failed write. Values the table rejects are the
// caller's fault and come back as ErrInvalidRow.
func writeError(op string, table models.Table, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UndefinedColumn,
			pgerrcode.InvalidTextRepresentation,
			pgerrcode.InvalidDatetimeFormat,
			pgerrcode.DatetimeFieldOverflow,
			pgerrcode.NumericValueOutOfRange,
			pgerrcode.NotNullViolation,
			pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrInvalidRow, pgErr.Message)
		}
	}
	return fmt.Errorf("failed to %s %s row: %w", op, table.Name, err)
}

// columns returns quoted column names in a stable order with their values.
// Nested objects and arrays are stored as JSON.
func columns(row models.Row) ([]string, []any, error) {
	keys := make([]string, 0, len(row))
	for k := range row {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	cols := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		cols[i] = ident(k)
		switch v := row[k].(type) {
		case map[string]any, []any:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: column %s: %v", ErrInvalidRow, k, err)
			}
			args[i] = string(encoded)
		default:
			args[i] = v
		}
	}
	return cols, args, nil
}

func decodeRow(raw []byte) (models.Row, error) {
	var row models.Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	return row, nil
}

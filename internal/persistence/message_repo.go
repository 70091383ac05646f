package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/skobkin/advchat/internal/domain"
)

// MaxBodyLen caps stored message bodies.
const MaxBodyLen = 10000

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Insert logs m. A record whose checksum was already logged the same day is
// skipped and reported with id 0.
func (r *MessageRepo) Insert(ctx context.Context, m domain.Message) (int64, error) {
	if len(m.Body) > MaxBodyLen {
		return 0, fmt.Errorf("insert message: body is %d bytes, limit %d", len(m.Body), MaxBodyLen)
	}
	if m.Checksum == "" {
		m.Checksum = domain.RecordChecksum(m.Kind, m.Body)
	}
	direction := m.Direction
	if direction == 0 {
		direction = domain.MessageDirectionIn
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages(kind, checksum, day, from_id, to_id, body, address, rssi, direction, at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(m.Kind), m.Checksum, domain.DayKey(m.At), nullableString(m.From), nullableString(m.To), m.Body,
		nullableString(m.Address), m.RSSI, int(direction), timeToUnixMillis(m.At))
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err == nil && rowsAffected == 0 {
		return 0, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get message local id: %w", err)
	}
	return id, nil
}

// Query returns matching messages newest first. limit <= 0 means no limit.
func (r *MessageRepo) Query(ctx context.Context, filter domain.MessageFilter, limit int) ([]domain.Message, error) {
	where, args := filterClause(filter)
	query := `
		SELECT local_id, kind, checksum, from_id, to_id, body, address, rssi, direction, at
		FROM messages` + where + `
		ORDER BY at DESC, local_id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func (r *MessageRepo) Count(ctx context.Context, filter domain.MessageFilter) (int, error) {
	where, args := filterClause(filter)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

//goland:noinspection SqlWithoutWhere
func (r *MessageRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages;`); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

// filterClause mirrors domain.MessageFilter.Match; the substring match is
// case-sensitive.
func filterClause(f domain.MessageFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Kind != "" {
		conds = append(conds, `kind = ?`)
		args = append(args, string(f.Kind))
	}
	if f.Contains != "" {
		conds = append(conds, `instr(body, ?) > 0`)
		args = append(args, f.Contains)
	}
	if !f.Since.IsZero() {
		conds = append(conds, `at >= ?`)
		args = append(args, timeToUnixMillis(f.Since))
	}
	if !f.Until.IsZero() {
		conds = append(conds, `at <= ?`)
		args = append(args, timeToUnixMillis(f.Until))
	}
	if len(conds) == 0 {
		return "", nil
	}

	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

func scanMessage(scanner interface {
	Scan(dest ...any) error
}) (domain.Message, error) {
	var (
		m         domain.Message
		kind      string
		atMs      int64
		direction int
		fromRaw   sql.NullString
		toRaw     sql.NullString
		addrRaw   sql.NullString
		rssi      sql.NullInt64
	)
	if err := scanner.Scan(&m.LocalID, &kind, &m.Checksum, &fromRaw, &toRaw, &m.Body, &addrRaw, &rssi, &direction, &atMs); err != nil {
		return domain.Message{}, fmt.Errorf("scan message: %w", err)
	}
	m.Kind = domain.MessageKind(kind)
	m.Direction = domain.MessageDirection(direction)
	m.At = unixMillisToTime(atMs)
	m.From = fromRaw.String
	m.To = toRaw.String
	m.Address = addrRaw.String
	if rssi.Valid {
		v := int(rssi.Int64)
		m.RSSI = &v
	}
	return m, nil
}

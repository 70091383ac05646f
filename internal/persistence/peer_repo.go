package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skobkin/advchat/internal/domain"
)

type PeerRepo struct {
	db *sql.DB
}

func NewPeerRepo(db *sql.DB) *PeerRepo {
	return &PeerRepo{db: db}
}

// Upsert keeps the earliest first_seen_at and does not wipe known model,
// version or address with empty values.
func (r *PeerRepo) Upsert(ctx context.Context, p domain.Peer) error {
	firstSeen := p.FirstSeenAt
	if firstSeen.IsZero() {
		firstSeen = p.LastHeardAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO peers(callsign, model, version, address, rssi, first_seen_at, last_heard_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(callsign) DO UPDATE SET
			model = COALESCE(excluded.model, peers.model),
			version = COALESCE(excluded.version, peers.version),
			address = COALESCE(excluded.address, peers.address),
			rssi = COALESCE(excluded.rssi, peers.rssi),
			first_seen_at = MIN(peers.first_seen_at, excluded.first_seen_at),
			last_heard_at = MAX(peers.last_heard_at, excluded.last_heard_at),
			updated_at = excluded.updated_at
	`, p.Callsign, nullableString(p.Model), nullableString(p.Version), nullableString(p.Address), p.RSSI,
		timeToUnixMillis(firstSeen), timeToUnixMillis(p.LastHeardAt), timeToUnixMillis(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert peer: %w", err)
	}
	return nil
}

func (r *PeerRepo) ListSortedByLastHeard(ctx context.Context) ([]domain.Peer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT callsign, model, version, address, rssi, first_seen_at, last_heard_at, updated_at
		FROM peers
		ORDER BY last_heard_at DESC, callsign
	`)
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []domain.Peer
	for rows.Next() {
		var (
			p       domain.Peer
			model   sql.NullString
			version sql.NullString
			address sql.NullString
			rssi    sql.NullInt64
			firstMs int64
			heardMs int64
			updMs   int64
		)
		if err := rows.Scan(&p.Callsign, &model, &version, &address, &rssi, &firstMs, &heardMs, &updMs); err != nil {
			return nil, fmt.Errorf("scan peer: %w", err)
		}
		p.Model = model.String
		p.Version = version.String
		p.Address = address.String
		if rssi.Valid {
			v := int(rssi.Int64)
			p.RSSI = &v
		}
		p.FirstSeenAt = unixMillisToTime(firstMs)
		p.LastHeardAt = unixMillisToTime(heardMs)
		p.UpdatedAt = unixMillisToTime(updMs)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peers: %w", err)
	}
	return out, nil
}

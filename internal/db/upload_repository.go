package db

import (
	"context"
	"database/sql"
	"math"
	"time"
)

// Upload is the audit record of a trace document accepted by the web API.
type Upload struct {
	ID           int64     `json:"id"`
	UserID       *int      `json:"user_id,omitempty"`
	Username     string    `json:"username"`
	Digest       string    `json:"digest"`
	ICAO         string    `json:"icao,omitempty"`
	PointCount   int       `json:"point_count"`
	MinTimestamp *float64  `json:"min_timestamp,omitempty"`
	MaxTimestamp *float64  `json:"max_timestamp,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// UploadRepository records uploaded trace documents
type UploadRepository struct {
	db *sql.DB
}

// NewUploadRepository creates a new upload repository
func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Record inserts an upload and fills in its ID and time.
// A zero UserID is stored as NULL (for the configured admin account).
func (r *UploadRepository) Record(ctx context.Context, u *Upload) error {
	query := `
		INSERT INTO trace_uploads
			(user_id, username, digest, icao, point_count, min_timestamp, max_timestamp)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		RETURNING id, uploaded_at
	`

	var userID sql.NullInt64
	if u.UserID != nil && *u.UserID != 0 {
		userID = sql.NullInt64{Int64: int64(*u.UserID), Valid: true}
	}

	return r.db.QueryRowContext(ctx, query,
		userID,
		u.Username,
		u.Digest,
		u.ICAO,
		u.PointCount,
		finiteOrNull(u.MinTimestamp),
		finiteOrNull(u.MaxTimestamp),
	).Scan(&u.ID, &u.UploadedAt)
}

// Recent returns the latest uploads, newest first.
func (r *UploadRepository) Recent(ctx context.Context, limit int) ([]*Upload, error) {
	query := `
		SELECT id, user_id, username, digest, COALESCE(icao, ''), point_count,
		       min_timestamp, max_timestamp, uploaded_at
		FROM trace_uploads
		ORDER BY uploaded_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		u := &Upload{}
		var userID sql.NullInt64
		err := rows.Scan(
			&u.ID,
			&userID,
			&u.Username,
			&u.Digest,
			&u.ICAO,
			&u.PointCount,
			&u.MinTimestamp,
			&u.MaxTimestamp,
			&u.UploadedAt,
		)
		if err != nil {
			return nil, err
		}
		if userID.Valid {
			id := int(userID.Int64)
			u.UserID = &id
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// finiteOrNull maps missing, NaN and infinite values to SQL NULL.
func finiteOrNull(v *float64) sql.NullFloat64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// Package stats persists per-upload statistics and answers the aggregate
// queries behind the upload response and the regional dashboard.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tepihealth/ucsuploader/internal/model"
)

// Recorder reads and writes the uploads table. Records are append-only;
// every read returns zero/null-safe defaults when no rows match.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder wraps a pgx pool.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record inserts one immutable upload statistics row.
func (r *Recorder) Record(ctx context.Context, s model.UploadStats) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO uploads
			(id, user_base_entity_id, username, uploaded_file, uploaded_file_type,
			 imported_rows, rejected_rows, upload_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserBaseEntityID, s.Username, s.UploadedFile, string(s.UploadedFileType),
		s.ImportedRows, s.RejectedRows, s.UploadDate,
	)
	if err != nil {
		return fmt.Errorf("insert upload stats: %w", err)
	}
	return nil
}

// FileTypeCount counts a user's uploads of one file type.
func (r *Recorder) FileTypeCount(ctx context.Context, username string, t model.UploadType) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM uploads WHERE username = $1 AND uploaded_file_type = $2`,
		username, string(t),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s uploads: %w", t, err)
	}
	return n, nil
}

// SumImported totals a user's accepted rows across all uploads.
func (r *Recorder) SumImported(ctx context.Context, username string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(imported_rows), 0) FROM uploads WHERE username = $1`,
		username,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sum imported rows: %w", err)
	}
	return n, nil
}

// SumRejected totals a user's rejected rows across all uploads.
func (r *Recorder) SumRejected(ctx context.Context, username string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(rejected_rows), 0) FROM uploads WHERE username = $1`,
		username,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sum rejected rows: %w", err)
	}
	return n, nil
}

// LastUploadDate returns the user's most recent upload timestamp, or nil
// when the user has never uploaded.
func (r *Recorder) LastUploadDate(ctx context.Context, username string) (*time.Time, error) {
	var last *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(upload_date) FROM uploads WHERE username = $1`,
		username,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last upload date: %w", err)
	}
	return last, nil
}

// UserStats composes the per-user aggregates for the upload response and
// the login payload.
func (r *Recorder) UserStats(ctx context.Context, username string) (*model.UserStats, error) {
	s := &model.UserStats{}
	var err error

	if s.ClientFiles, err = r.FileTypeCount(ctx, username, model.TypeClients); err != nil {
		return nil, err
	}
	if s.ContactFiles, err = r.FileTypeCount(ctx, username, model.TypeContacts); err != nil {
		return nil, err
	}
	if s.ResultFiles, err = r.FileTypeCount(ctx, username, model.TypeResults); err != nil {
		return nil, err
	}
	if s.AcceptedRecords, err = r.SumImported(ctx, username); err != nil {
		return nil, err
	}
	if s.RejectedRecords, err = r.SumRejected(ctx, username); err != nil {
		return nil, err
	}
	if s.LastUploadDate, err = r.LastUploadDate(ctx, username); err != nil {
		return nil, err
	}
	return s, nil
}

// regionJoin links uploads to the submitter's location region via the
// externally-owned team_members and locations tables.
const regionJoin = `
	FROM uploads u
	JOIN team_members tm ON tm.base_entity_id = u.user_base_entity_id
	JOIN locations l ON l.location_uuid = tm.location_id
	WHERE l.region_name = $1`

// RegionFileTypeCount counts all uploads of one file type submitted from a
// region.
func (r *Recorder) RegionFileTypeCount(ctx context.Context, region string, t model.UploadType) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*)`+regionJoin+` AND u.uploaded_file_type = $2`,
		region, string(t),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s uploads for region %s: %w", t, region, err)
	}
	return n, nil
}

// RegionAccepted sums the accepted rows of all uploads from a region.
func (r *Recorder) RegionAccepted(ctx context.Context, region string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(u.imported_rows), 0)`+regionJoin, region,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sum accepted rows for region %s: %w", region, err)
	}
	return n, nil
}

// RegionRejected sums the rejected rows of all uploads from a region.
func (r *Recorder) RegionRejected(ctx context.Context, region string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(u.rejected_rows), 0)`+regionJoin, region,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sum rejected rows for region %s: %w", region, err)
	}
	return n, nil
}

// RegionStats composes the regional aggregates for the admin dashboard.
func (r *Recorder) RegionStats(ctx context.Context, region string) (*model.RegionStats, error) {
	s := &model.RegionStats{Region: region}
	var err error

	if s.ClientFiles, err = r.RegionFileTypeCount(ctx, region, model.TypeClients); err != nil {
		return nil, err
	}
	if s.ContactFiles, err = r.RegionFileTypeCount(ctx, region, model.TypeContacts); err != nil {
		return nil, err
	}
	if s.ResultFiles, err = r.RegionFileTypeCount(ctx, region, model.TypeResults); err != nil {
		return nil, err
	}
	if s.AcceptedRecords, err = r.RegionAccepted(ctx, region); err != nil {
		return nil, err
	}
	if s.RejectedRecords, err = r.RegionRejected(ctx, region); err != nil {
		return nil, err
	}
	return s, nil
}

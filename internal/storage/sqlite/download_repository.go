package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/italolelis/grabber/internal/storage"
)

// DefaultLockTTL is how long a claim holds before another instance may take it over.
const DefaultLockTTL = 6 * time.Hour

type DownloadRepository struct {
	db      *sql.DB
	lockTTL time.Duration
	now     func() time.Time
}

func NewDownloadRepository(dbConn *sql.DB, lockTTL time.Duration) *DownloadRepository {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}

	return &DownloadRepository{db: dbConn, lockTTL: lockTTL, now: time.Now}
}

func (r *DownloadRepository) GetDownloads() ([]storage.DownloadRecord, error) {
	rows, err := r.db.Query(`SELECT id, source, file_path, size, downloaded_at, status, locked_by FROM downloads ORDER BY file_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var downloads []storage.DownloadRecord

	for rows.Next() {
		var (
			record       storage.DownloadRecord
			downloadedAt sql.NullString
			lockedBy     sql.NullString
		)

		err := rows.Scan(&record.ID, &record.Source, &record.FilePath, &record.Size, &downloadedAt, &record.Status, &lockedBy)
		if err != nil {
			return nil, err
		}

		record.DownloadedAt = downloadedAt.String
		record.LockedBy = lockedBy.String

		downloads = append(downloads, record)
	}

	return downloads, rows.Err()
}

// ClaimDownload atomically marks filePath as downloading by instanceID. The
// claim fails while a different instance holds a lock younger than the TTL.
func (r *DownloadRepository) ClaimDownload(source, filePath, instanceID string) (bool, error) {
	now := r.now().UTC()

	res, err := r.db.Exec(`
		INSERT INTO downloads (id, source, file_path, status, locked_by, locked_at)
		VALUES (?, ?, ?, 'downloading', ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			source = excluded.source,
			status = 'downloading',
			locked_by = excluded.locked_by,
			locked_at = excluded.locked_at
		WHERE downloads.locked_by IS NULL
			OR downloads.locked_by = ''
			OR downloads.locked_by = excluded.locked_by
			OR downloads.locked_at < ?
	`, uuid.NewString(), source, filePath, instanceID, now.Format(time.RFC3339), now.Add(-r.lockTTL).Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("failed to claim download: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// UpdateDownloadStatus sets the status for a download and releases its lock.
func (r *DownloadRepository) UpdateDownloadStatus(filePath, status string, size int64) error {
	res, err := r.db.Exec(`
		UPDATE downloads
		SET status = ?, size = ?, downloaded_at = ?, locked_by = NULL, locked_at = NULL
		WHERE file_path = ?`,
		status, size, r.now().UTC().Format(time.RFC3339), filePath)
	if err != nil {
		return fmt.Errorf("failed to update download status: %w", err)
	}

	return expectOne(res, filePath)
}

func (r *DownloadRepository) DeleteDownload(filePath string) error {
	res, err := r.db.Exec(`DELETE FROM downloads WHERE file_path = ?`, filePath)
	if err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}

	return expectOne(res, filePath)
}

func expectOne(res sql.Result, filePath string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, filePath)
	}

	return nil
}

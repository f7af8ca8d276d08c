package sqlite

import (
	"context"

	"github.com/italolelis/grabber/internal/storage"
	"github.com/italolelis/grabber/internal/telemetry"
)

// InstrumentedDownloadRepository wraps a storage.DownloadRepository with telemetry.
type InstrumentedDownloadRepository struct {
	repo      storage.DownloadRepository
	telemetry *telemetry.Telemetry
}

var _ storage.DownloadRepository = (*InstrumentedDownloadRepository)(nil)

func NewInstrumentedDownloadRepository(repo storage.DownloadRepository, tel *telemetry.Telemetry) *InstrumentedDownloadRepository {
	return &InstrumentedDownloadRepository{
		repo:      repo,
		telemetry: tel,
	}
}

// GetDownloads retrieves all downloads with telemetry.
func (r *InstrumentedDownloadRepository) GetDownloads() ([]storage.DownloadRecord, error) {
	var result []storage.DownloadRecord

	err := r.telemetry.InstrumentDBOperation(context.Background(), "get_downloads", func(context.Context) error {
		var err error
		result, err = r.repo.GetDownloads()

		return err
	})

	return result, err
}

// ClaimDownload claims a destination with telemetry.
func (r *InstrumentedDownloadRepository) ClaimDownload(source, filePath, instanceID string) (bool, error) {
	var claimed bool

	err := r.telemetry.InstrumentDBOperation(context.Background(), "claim_download", func(context.Context) error {
		var err error
		claimed, err = r.repo.ClaimDownload(source, filePath, instanceID)

		return err
	})

	return claimed, err
}

// UpdateDownloadStatus updates download status with telemetry.
func (r *InstrumentedDownloadRepository) UpdateDownloadStatus(filePath, status string, size int64) error {
	return r.telemetry.InstrumentDBOperation(context.Background(), "update_download_status", func(context.Context) error {
		return r.repo.UpdateDownloadStatus(filePath, status, size)
	})
}

// DeleteDownload removes a record with telemetry.
func (r *InstrumentedDownloadRepository) DeleteDownload(filePath string) error {
	return r.telemetry.InstrumentDBOperation(context.Background(), "delete_download", func(context.Context) error {
		return r.repo.DeleteDownload(filePath)
	})
}

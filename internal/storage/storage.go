package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"strconv"
)

const (
	StatusDownloading = "downloading"
	StatusDownloaded  = "downloaded"
	StatusSkipped     = "skipped"
	StatusFailed      = "failed"
)

// ErrNotFound is returned when no record exists for a file path.
var ErrNotFound = errors.New("storage: download not found")

// DownloadRecord represents a tracked download of one destination path.
type DownloadRecord struct {
	ID           string
	Source       string
	FilePath     string
	Size         int64
	DownloadedAt string
	Status       string
	LockedBy     string
}

type DownloadRepository interface {
	GetDownloads() ([]DownloadRecord, error)
	// ClaimDownload locks filePath for instanceID. It returns false when
	// another live instance holds the lock.
	ClaimDownload(source, filePath, instanceID string) (bool, error)
	// UpdateDownloadStatus records the final status and releases the lock.
	UpdateDownloadStatus(filePath, status string, size int64) error
	DeleteDownload(filePath string) error
}

// GenerateInstanceID returns a unique string for this process (hostname+pid+random).
func GenerateInstanceID() string {
	host, _ := os.Hostname()
	pid := os.Getpid()
	rnd := make([]byte, 4)
	_, _ = rand.Read(rnd)

	return host + "-" + strconv.Itoa(pid) + "-" + hex.EncodeToString(rnd)
}

package domain

import "time"

type UserID string

type User struct {
	ID           UserID    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullname"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// MeasurementResult is one classified speed test. Build it with
// NewMeasurementResult so Tier always matches the measured triple.
type MeasurementResult struct {
	DownloadMbps float64   `json:"download_speed"`
	UploadMbps   float64   `json:"upload_speed"`
	PingMs       float64   `json:"ping"`
	Tier         Tier      `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewMeasurementResult(pingMs, downloadMbps, uploadMbps float64, at time.Time) MeasurementResult {
	return MeasurementResult{
		DownloadMbps: downloadMbps,
		UploadMbps:   uploadMbps,
		PingMs:       pingMs,
		Tier:         Classify(pingMs, downloadMbps, uploadMbps),
		Timestamp:    at,
	}
}

type RecordID string

// MeasurementRecord is a stored assessment produced by the background monitor.
type MeasurementRecord struct {
	ID     RecordID `json:"id"`
	Link   string   `json:"link"`
	Source string   `json:"source"`
	MeasurementResult
}

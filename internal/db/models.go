package db

// Run represents a row in the harvest_runs table
type Run struct {
	ID           string  `json:"id"`
	StartedAt    int64   `json:"started_at"`  // Unix millis
	FinishedAt   int64   `json:"finished_at"` // Unix millis
	SampleCount  int     `json:"sample_count"`
	Skipped      int     `json:"skipped"`
	Trees        int     `json:"trees"`
	Stems        int     `json:"stems"`
	Calculations int     `json:"calculations"`
	Heights      int     `json:"heights"`
	ArchivePath  *string `json:"archive_path"`
	UploadKey    *string `json:"upload_key"` // object key when the archive was uploaded
}

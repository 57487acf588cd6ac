package models

// RecordingStatusPending is the estado of a newly archived recording.
const RecordingStatusPending = "pendiente"

// Recording is a Zoom cloud recording re-uploaded to object storage.
type Recording struct {
	ID          int64  `json:"id"`
	MeetingID   string `json:"meeting_id"`
	DownloadURL string `json:"download_url"`
	Status      string `json:"estado"`
}

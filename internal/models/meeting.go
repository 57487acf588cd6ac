package models

// Meeting is a scheduled Zoom meeting keyed by its Zoom id.
type Meeting struct {
	ZoomID       string `json:"zoom_id"`
	Email        string `json:"email"`
	Topic        string `json:"topic"`
	Nomenclatura string `json:"nomenclatura"`
	Duration     int    `json:"duracion"`
	JoinURL      string `json:"join_url"`
	StartURL     string `json:"start_url"`
	Password     string `json:"password"`
	TagID        int64  `json:"tag_id"`
}

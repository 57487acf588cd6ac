package models

// Tag buckets meetings and recordings (e.g. "ccd", "digital").
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"nombre"`
}

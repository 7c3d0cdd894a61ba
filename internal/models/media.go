package models

import "time"

// Media is one ingested unit of user content.
type Media struct {
	Key         string        `json:"key"`
	Filename    string        `json:"filename"`
	Category    MediaCategory `json:"category"`
	ContentType string        `json:"contentType"`
	Source      IngestSource  `json:"source"`
	Description string        `json:"description"`
	Payload     []byte        `json:"payload,omitempty"`
	Datetime    time.Time     `json:"datetime"`
	Created     time.Time     `json:"created"`
}

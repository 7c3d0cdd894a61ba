package models

import "time"

// Todo is a user task created and completed through actions.
type Todo struct {
	Key         string     `json:"key"`
	MediaKey    string     `json:"mediaKey"`
	Description string     `json:"description"`
	Done        bool       `json:"done"`
	Due         *time.Time `json:"due"`
	Datetime    time.Time  `json:"datetime"`
	Created     time.Time  `json:"created"`
}

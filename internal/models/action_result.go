package models

import "time"

// ActionResult is the validated output of one action run against a Media record.
// MediaKey is a back-reference only; deleting the media does not remove results.
// Value holds JSON-decoded data: numbers are float64, arrays []any, objects
// map[string]any. The store normalizes other Go values to that form.
type ActionResult struct {
	Key        string         `json:"key"`
	MediaKey   string         `json:"mediaKey"`
	ActionType ActionType     `json:"actionType"`
	Value      map[string]any `json:"value"`
	Datetime   time.Time      `json:"datetime"`
	Created    time.Time      `json:"created"`
}

package models

import (
	"fmt"
	"strings"
)

// MediaCategory is the coarse content category derived from a content type.
type MediaCategory string

const (
	CategoryText  MediaCategory = "text"
	CategoryImage MediaCategory = "image"
	CategoryAudio MediaCategory = "audio"
	CategoryVideo MediaCategory = "video"
)

// IngestSource records where a piece of media came from.
type IngestSource string

const (
	SourceTextNote       IngestSource = "TXT_NOTE"
	SourceFileUpload     IngestSource = "FILE_UPLOAD"
	SourcePhoto          IngestSource = "PHOTO"
	SourceVideoRecording IngestSource = "VIDEO_RECORDING"
	SourceAudioRecording IngestSource = "AUDIO_RECORDING"
)

// ActionType identifies a model-selectable action.
type ActionType string

const (
	ActionFoodEstimate ActionType = "FOOD_ESTIMATE"
	ActionTodoCreate   ActionType = "TODO_CREATE"
	ActionTodoComplete ActionType = "TODO_COMPLETE"
	ActionDatapoint    ActionType = "DATAPOINT"
)

var validCategories = map[MediaCategory]struct{}{
	CategoryText:  {},
	CategoryImage: {},
	CategoryAudio: {},
	CategoryVideo: {},
}

var validSources = map[IngestSource]struct{}{
	SourceTextNote:       {},
	SourceFileUpload:     {},
	SourcePhoto:          {},
	SourceVideoRecording: {},
	SourceAudioRecording: {},
}

// actionTypes keeps catalog order; prompts and help text list them this way.
var actionTypes = []ActionType{
	ActionFoodEstimate,
	ActionTodoCreate,
	ActionTodoComplete,
	ActionDatapoint,
}

func IsValidCategory(category MediaCategory) bool {
	_, ok := validCategories[category]
	return ok
}

func IsValidSource(source IngestSource) bool {
	_, ok := validSources[source]
	return ok
}

func IsValidActionType(actionType ActionType) bool {
	for _, known := range actionTypes {
		if known == actionType {
			return true
		}
	}
	return false
}

// ActionTypes returns the action catalog in declaration order.
func ActionTypes() []ActionType {
	out := make([]ActionType, len(actionTypes))
	copy(out, actionTypes)
	return out
}

func ParseIngestSource(raw string) (IngestSource, error) {
	value := IngestSource(strings.ToUpper(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("source is required")
	}
	if !IsValidSource(value) {
		return "", fmt.Errorf("invalid source: %s", value)
	}
	return value, nil
}

func ParseActionType(raw string) (ActionType, error) {
	value := ActionType(strings.ToUpper(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("action type is required")
	}
	if !IsValidActionType(value) {
		return "", fmt.Errorf("invalid action type: %s", value)
	}
	return value, nil
}

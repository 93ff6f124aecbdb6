package event

import (
	"github.com/carvecad/carve/internal/edit"
	"github.com/carvecad/carve/internal/refs"
)

// Topics published by the engine and its collaborators.
const (
	// TopicSelectionHover fires when the hovered entity changes.
	TopicSelectionHover Topic = "selection.hover"
	// TopicSelectionCommitted fires when a hover is committed as the
	// active selection.
	TopicSelectionCommitted Topic = "selection.committed"
	// TopicSelectionHighlight asks the viewport to change highlight
	// rendering for an entity.
	TopicSelectionHighlight Topic = "selection.highlight"
	// TopicEditExecuted fires after a snapshot has been pushed.
	TopicEditExecuted Topic = "edit.executed"
	// TopicEditFailed fires when an edit was rejected or failed.
	TopicEditFailed Topic = "edit.failed"
	// TopicHistoryMoved fires on undo, redo, push and reset.
	TopicHistoryMoved Topic = "history.moved"
	// TopicFileChanged fires when a watched import file changes on disk.
	TopicFileChanged Topic = "project.file.changed"
	// TopicStatus carries human-readable messages for the message panel.
	TopicStatus Topic = "app.status"
)

// HighlightStyle selects how the viewport should render an entity.
type HighlightStyle uint8

const (
	// HighlightNone clears any highlight.
	HighlightNone HighlightStyle = iota
	// HighlightHover marks the entity under the pointer.
	HighlightHover
	// HighlightSelected marks the committed selection.
	HighlightSelected
)

// HoverChange is the payload of TopicSelectionHover.
type HoverChange struct {
	Ref    refs.Ref
	Active bool
}

// SelectionChange is the payload of TopicSelectionCommitted.
type SelectionChange struct {
	Ref    refs.Ref
	Active bool
}

// Highlight is the payload of TopicSelectionHighlight.
type Highlight struct {
	Ref   refs.Ref
	Style HighlightStyle
}

// EditApplied is the payload of TopicEditExecuted.
type EditApplied struct {
	Edit       edit.Descriptor
	Generation uint64
	Volume     float64
}

// EditFailure is the payload of TopicEditFailed. Message is the
// human-readable description shown in the message panel.
type EditFailure struct {
	Edit    edit.Descriptor
	Message string
}

// HistoryMove is the payload of TopicHistoryMoved.
type HistoryMove struct {
	Cursor int
	Length int
}

// FileChange is the payload of TopicFileChanged.
type FileChange struct {
	Path string
}

// Status is the payload of TopicStatus.
type Status struct {
	Message string
}

package services

import (
	"github.com/syncboard/syncboard/pkg/models"
)

// Resolution names the strategy a client picked after receiving a conflict.
type Resolution string

const (
	// ResolutionYours resubmits the client's full field set as the new
	// authoritative state.
	ResolutionYours Resolution = "yours"
	// ResolutionServer discards the client's edits and keeps server state.
	ResolutionServer Resolution = "server"
	// ResolutionMerge applies a client-computed field-by-field hybrid.
	ResolutionMerge Resolution = "merge"
	// ResolutionOverwrite is the legacy label from the first board release.
	// The documented client never sends it; it behaves like the original
	// handler did: current server state is kept as-is. Kept as a distinct
	// case rather than folded into ResolutionServer.
	ResolutionOverwrite Resolution = "overwrite"
)

// ValidResolution reports whether r is a recognized strategy.
func ValidResolution(r Resolution) bool {
	switch r {
	case ResolutionYours, ResolutionServer, ResolutionMerge, ResolutionOverwrite:
		return true
	}
	return false
}

// applyResolution rewrites task's client-editable fields according to the
// chosen strategy. The server performs no semantic merging itself: for
// "yours" and "merge" it trusts the caller's already-reconciled payload.
// Metadata stamping, version bump and lease clearing happen in the commit
// path, not here.
func applyResolution(task *models.Task, patch models.TaskPatch, resolution Resolution) {
	switch resolution {
	case ResolutionYours, ResolutionMerge:
		applyPatch(task, patch)
	case ResolutionServer, ResolutionOverwrite:
		// Server state wins; nothing to apply.
	}
}

// validatePatch rejects patches carrying values outside the status and
// priority enums before they reach a conditional write. Empty fields mean
// "keep current" and pass.
func validatePatch(patch models.TaskPatch) error {
	if patch.Status != "" && !models.ValidStatus(patch.Status) {
		return &ValidationError{Field: "status", Message: "unknown status"}
	}
	if patch.Priority != "" && !models.ValidPriority(patch.Priority) {
		return &ValidationError{Field: "priority", Message: "unknown priority"}
	}
	return nil
}

// applyPatch overlays non-empty patch fields onto the task, matching the
// original wire contract where omitted fields keep their current value.
func applyPatch(task *models.Task, patch models.TaskPatch) {
	if patch.Title != "" {
		task.Title = patch.Title
	}
	if patch.Description != "" {
		task.Description = patch.Description
	}
	if patch.Status != "" {
		task.Status = patch.Status
	}
	if patch.Priority != "" {
		task.Priority = patch.Priority
	}
	if patch.AssignedTo != nil {
		task.AssignedTo = patch.AssignedTo
	}
}

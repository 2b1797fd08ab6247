// Package repositories implements SQLite persistence for local correlation state.
//
// Key Implementations:
//   - [ItemMappingRepository] : media item → task mappings recorded on task creation and marked on completion
//
// The task service remains the source of truth. Rows here are hints used when the service no longer
// lists a task, so every method treats a missing row as [shared.ErrNotFound] rather than corruption.
package repositories

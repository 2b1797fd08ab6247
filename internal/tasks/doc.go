// Package tasks reconciles media server events against a task service.
//
// # Core Operations
//
// [Reconciler.Reconcile] runs one pass per event:
//
//  1. Item added
//     - Resolves the series grouping, creating it on first sight
//     - Treats a task already carrying the item id as a duplicate delivery
//     - Creates the episode task and records an item mapping
//
//  2. Playback finished
//     - Looks up the series grouping without creating it
//     - Completes the open task for the item, falling back to the item mapping
//     - Moves the grouping to the end of the project once every task in it is done
//
// Events that cannot be matched to remote state are logged as [shared.ErrInconsistentState]
// and reported as skipped rather than failed.
//
// # Grouping Resolution
//
// [Resolver] caches the project's groupings for one pass. Find-or-create runs under the
// project's region of a process-wide [KeyedMutex] so concurrent passes never create two
// groupings for one series.
//
// # Item Mappings
//
// The optional [MappingStore] interface enables local item → task correlation.
//
// Mappings are written silently (errors logged) so a database problem never blocks a pass.
// They let a completion be applied when the task service no longer lists the task, and let a
// redelivered completion repair a grouping move that failed earlier.
package tasks

// Package models defines the domain entities shared by the webhook, reconciliation, and persistence layers.
//
// The package contains two categories of types:
//
// 1. Remote entities: state owned by the task service and re-read on every reconciliation pass
//   - [Grouping] : a named subdivision of the target project, one per series
//   - [Task] : one episode to watch, correlated to the media library by [Task.ExternalRef]
//
// 2. Local entities: inputs and hints that never leave this process
//   - [MediaEvent] : a normalized webhook notification
//   - [ItemMapping] : a persisted media item → task correlation used as a fallback lookup
//
// The remote service stays authoritative; nothing here caches remote state beyond a single pass.
package models

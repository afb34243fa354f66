package storage

// Package storage is habitd's persistence layer.
//
// It holds:
//   - Habits and their recurrence rules
//   - The notification backend's scheduled entries (so firing state
//     survives a restart)
//   - A delivery audit trail (one row per delivery attempt)

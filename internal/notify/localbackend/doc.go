// Package localbackend is habitd's notification delivery backend: the
// in-process stand-in for a platform notification service.
//
// Scheduled entries live in sqlite and are rebuilt into live cron entries
// (daily/weekly repetition) or one-shot timers on every start, so firing
// state survives restarts. Each fire hands the notification to a delivery
// sink exactly once; delivery retry policy belongs to the sink.
package localbackend

// Package logx configures habitd's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// The Service variant stays "live": Apply() swaps sinks and levels at
// runtime without invalidating loggers handed out earlier.
package logx

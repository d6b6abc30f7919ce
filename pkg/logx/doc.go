// Package logx configures netctl's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller), on stderr
//   - Optional file output JSON-structured
package logx

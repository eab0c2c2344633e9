// Package logx is the structured logging layer of jobtracker.
//
// Logger wraps zerolog and keeps three sinks behind one value type:
//   - console output for operators (short timestamp + file:line)
//   - an optional JSON file
//   - an optional Telegram chat for warnings, rate limited
package logx

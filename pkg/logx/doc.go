// Package logx configures jobsched's structured logging.
//
// Logger is a small value type on top of zerolog:
//   - Console output stays readable (short timestamp + short caller)
//   - File output is JSON, one record per line
//   - An optional remote sink (Telegram) receives records at or above a
//     minimum level, rate limited so a noisy job cannot flood the chat
package logx

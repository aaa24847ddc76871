// Package monitoring carries the process-wide diagnostic logger.
//
// The occupancy engines never write to host logging facilities directly;
// everything funnels through Logf so an embedding process can redirect or
// silence the library with one call.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf.
// Replace it with SetLogger; hosts that embed the tracker typically point it
// at their own structured logger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil argument installs a no-op
// logger, which mutes the library entirely.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

package transport

import "fmt"

// sprint is a thin wrapper so call sites read like fmt.Sprint while keeping
// a single import point (debug tracing below formats the same way).
func sprint(a ...interface{}) string {
	return fmt.Sprint(a...)
}

// debug is a no-op in production builds; build with the "quictrace" tag to
// enable verbose packet/frame tracing to stderr (see debug_trace.go).
var debug = func(format string, args ...interface{}) {}

// minInt is defined in conn.go (it already carries one copy from upstream);
// helpers here cover the width/type combinations conn.go doesn't need.

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

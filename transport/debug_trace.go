//go:build quictrace

package transport

import (
	"fmt"
	"os"
)

func init() {
	debug = func(format string, args ...interface{}) {
		fmt.Fprintf(os.Stderr, "quic: "+format+"\n", args...)
	}
}

//go:build !windows

package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

var signals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func Notify(ch chan os.Signal) {
	signal.Notify(ch, signals...)
}

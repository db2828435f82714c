//go:build windows

package shutdown

import (
	"os"
	"os/signal"
)

var signals = []os.Signal{os.Interrupt}

func Notify(ch chan os.Signal) {
	signal.Notify(ch, signals...)
}

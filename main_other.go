//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// The global shortcut needs the OS main thread on macOS.
	mainthread.Init(run)
}

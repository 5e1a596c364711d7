//go:build gui

package main

import (
	"fmt"
	"os"
	"runtime"

	"talkbox/gui"
)

// initGUI runs fyne on the main thread and the rest of the program in the
// ready callback.
func initGUI() {
	o := parseFlags()
	runtime.LockOSThread()

	done := make(chan int, 1)
	var app *gui.App
	app = gui.NewApp(func() {
		done <- start(o, app)
		app.Quit()
	})
	if err := gui.Run(app); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	select {
	case code := <-done:
		os.Exit(code)
	default:
		// window closed while the controller was still running
		os.Exit(0)
	}
}

// Package crash keeps panics from taking the bot down unnoticed
package crash

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"tg-modbot/internal/logger"
)

// flushDelay lets the rotating log writer catch up before a fatal exit
const flushDelay = time.Second

// PanicError is what Capture returns when fn panicked
type PanicError struct {
	Module string
	Value  interface{}
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Module, e.Value)
}

// RecoverWithStack logs a recovered panic with its stack. Use it deferred.
func RecoverWithStack(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, r, debug.Stack(), false)
	}
}

// RecoverWithStackAndExit logs the panic and exits the process with status 1
func RecoverWithStackAndExit(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, r, debug.Stack(), true)
		time.Sleep(flushDelay)
		os.Exit(1)
	}
}

// Capture runs fn and turns a panic into a *PanicError instead of unwinding further
func Capture(moduleName string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			report(moduleName, r, stack, false)
			err = &PanicError{Module: moduleName, Value: r, Stack: stack}
		}
	}()
	fn()
	return nil
}

// SafeGoroutine runs fn on its own goroutine; a panic there is logged, not fatal
func SafeGoroutine(name string, fn func()) {
	go func() {
		defer RecoverWithStack("goroutine-" + name)
		fn()
	}()
}

func report(moduleName string, r interface{}, stack []byte, fatal bool) {
	severity := "PANIC"
	if fatal {
		severity = "FATAL PANIC"
	}

	logger.Errorf("%s in %s: %v\n%s", severity, moduleName, r, stack)

	// stderr as well, container logs may not include the log file
	fmt.Fprintf(os.Stderr, "[%s] %s %s: %v\n", time.Now().Format(time.DateTime), severity, moduleName, r)
	if fatal {
		fmt.Fprintf(os.Stderr, "%s\n", stack)
		logger.Error(runtimeSummary())
	}
}

func runtimeSummary() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return fmt.Sprintf("runtime: go=%s cpus=%d goroutines=%d heap_alloc=%dKB heap_inuse=%dKB gc=%d",
		runtime.Version(), runtime.NumCPU(), runtime.NumGoroutine(),
		m.HeapAlloc/1024, m.HeapInuse/1024, m.NumGC)
}

// SetupCrashHandler turns memory faults into recoverable panics
func SetupCrashHandler() {
	debug.SetPanicOnFault(true)
}

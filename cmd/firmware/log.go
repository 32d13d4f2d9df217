//go:build tinygo

package main

import "fmt"

// consoleLogger writes to the serial console, debug messages are discarded
type consoleLogger struct{}

func (l *consoleLogger) Error(args ...interface{}) { println("ERROR", fmt.Sprint(args...)) }

func (l *consoleLogger) Errorf(format string, args ...interface{}) {
	println("ERROR", fmt.Sprintf(format, args...))
}

func (l *consoleLogger) Warn(args ...interface{}) { println("WARN ", fmt.Sprint(args...)) }

func (l *consoleLogger) Warnf(format string, args ...interface{}) {
	println("WARN ", fmt.Sprintf(format, args...))
}

func (l *consoleLogger) Info(args ...interface{}) { println("INFO ", fmt.Sprint(args...)) }

func (l *consoleLogger) Infof(format string, args ...interface{}) {
	println("INFO ", fmt.Sprintf(format, args...))
}

func (l *consoleLogger) Debug(args ...interface{}) {}

func (l *consoleLogger) Debugf(format string, args ...interface{}) {}

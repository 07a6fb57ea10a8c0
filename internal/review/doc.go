// Package review implements the two human suspension points of a run:
// presenting a draft for approval and choosing where the approved draft
// goes.
//
// The console implementations block on line input. The autopilot presenter
// and preset decider return immediately without any I/O so unattended runs
// never reach a blocking read.
package review

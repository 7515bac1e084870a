// Package watcher supervises the timechanged helper process.
//
// The helper speaks a line-oriented protocol over its standard streams. The
// parent writes one of the literal commands "enable", "disable" or "exit" to
// the child's stdin, each terminated by a newline. Any line the child writes
// to stdout signals that the system clock or timezone changed; the content of
// the line is not interpreted. Non-empty lines on stderr are out-of-band
// diagnostics and are surfaced verbatim to the owner. After receiving "exit"
// the child is expected to terminate, closing both output streams; the
// watcher relies on that closure to unblock its readers, so there is no
// forced-kill path in a clean teardown. Child behaviour on unrecognized
// input is the child's contract and is not defined here.
package watcher

// Package engine runs thing commands end to end: it rebuilds the addressed
// thing from its snapshot and journal, dispatches the command to its
// strategy, appends the resulting event and answers the caller.
//
// Commands for one thing are processed one at a time. Commands for
// different things run concurrently.
package engine

// Package obslog provides a tagged stdlib logger per component, the same
// shape as the teacher's internal/common logger but parameterized by a
// component tag instead of a single global "[APP]" prefix, since this
// system has enough independently-running components (feed, ingest,
// replay, processor, httpapi) that one shared prefix would be useless for
// triage.
package obslog

import (
	"log"
	"os"
)

// New returns a *log.Logger tagged with component, writing to stdout with
// standard timestamp flags.
func New(component string) *log.Logger {
	return log.New(os.Stdout, "["+component+"] ", log.LstdFlags)
}

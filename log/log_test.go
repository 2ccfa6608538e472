package log_test

import (
	"bytes"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zk-ballotbox/log"
)

func TestLevelsAndWriters(t *testing.T) {
	c := qt.New(t)
	defer log.Init(log.LogLevelError, "stderr", nil)

	var console, errs bytes.Buffer
	log.InitWithWriter(log.LogLevelInfo, "", &console, &errs)
	c.Assert(log.Level(), qt.Equals, log.LogLevelInfo)

	log.Debugw("hidden debug line", "ballot", 1)
	log.Infow("registered leaf", "index", 3)
	log.Warnf("ballot %d failed", 7)
	log.Errorw(errors.New("boom"), "tally aborted")

	out := console.String()
	c.Assert(out, qt.Not(qt.Contains), "hidden debug line")
	c.Assert(out, qt.Contains, "registered leaf")
	c.Assert(out, qt.Contains, "ballot 7 failed")
	c.Assert(out, qt.Contains, "tally aborted")

	// only warnings and errors reach the error writer
	c.Assert(errs.String(), qt.Not(qt.Contains), "registered leaf")
	c.Assert(errs.String(), qt.Contains, "ballot 7 failed")
	c.Assert(errs.String(), qt.Contains, "boom")
}

func TestInvalidLevel(t *testing.T) {
	c := qt.New(t)
	c.Assert(func() { log.Init("verbose", "stderr", nil) }, qt.PanicMatches, `invalid log level: "verbose"`)
}

func TestOnError(t *testing.T) {
	c := qt.New(t)

	var got []string
	prev := log.OnError(func(msg string) { got = append(got, msg) })
	log.Warn("not an error")
	log.Error("first error")
	log.Errorw(nil, "second error")
	log.Restore(prev)
	log.Error("after restore")

	c.Assert(got, qt.DeepEquals, []string{"first error"})
}

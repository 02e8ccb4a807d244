package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Spinner shows progress of a long provisioning step. All methods are safe
// to call on a nil Spinner, which is what callers use when output is not a
// terminal.
type Spinner struct {
	*spinner.Spinner
	msg     string
	started time.Time
}

func NewSpinner(w io.Writer, msg string) *Spinner {
	s := &Spinner{
		Spinner: spinner.New(
			spinner.CharSets[14],
			200*time.Millisecond,
			spinner.WithHiddenCursor(true),
			spinner.WithWriter(w),
			spinner.WithSuffix(" "+msg),
		),
		msg:     msg,
		started: time.Now(),
	}
	s.Start()
	return s
}

func (s *Spinner) UpdateMessage(msg string) {
	if s == nil {
		return
	}
	s.Spinner.Suffix = " " + msg
	s.msg = msg
}

func (s *Spinner) Success(msg ...string) {
	s.finish(color.HiGreenString("✓"), msg)
}

func (s *Spinner) Warn(msg ...string) {
	s.finish(color.HiYellowString("!"), msg)
}

func (s *Spinner) Fail(msg ...string) {
	s.finish(color.HiRedString("✗"), msg)
}

func (s *Spinner) finish(symbol string, msg []string) {
	if s == nil {
		return
	}
	if len(msg) == 0 {
		msg = []string{s.msg}
	}
	elapsed := time.Since(s.started).Round(time.Second)
	s.Spinner.FinalMSG = fmt.Sprintf("%s %s %s\n", symbol, msg[0], color.HiBlackString("(%s)", elapsed))
	s.Stop()
}

// Package diag is the structured-diagnostics layer for pkg/pass outcomes,
// used by cmd/dswp (SPEC_FULL.md §11): it wraps a zerolog.Logger
// so the `dswp: ineligible: <predicate>` / `dswp: internal: <reason>`
// vocabulary pkg/planner, pkg/loopinfo, pkg/stage, and pkg/stitch already
// bake into their error strings also lands as structured fields on the
// diagnostic line spec.md §7 requires ("one diagnostic line names the
// failing predicate"), rather than forcing a caller to grep an error
// string for it.
//
// Grounded on alexisbeaulieu97-Streamy's internal/logger (SPEC_FULL.md
// §11: zerolog replaces the teacher's fmt.Printf-based debug output),
// generalized from Streamy's own charmbracelet/log-backed shape to
// zerolog directly since that is the dependency SPEC_FULL.md names.
package diag

import (
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/dswp-go/dswp/pkg/loopinfo"
	"github.com/dswp-go/dswp/pkg/pass"
	"github.com/dswp-go/dswp/pkg/planner"
	"github.com/dswp-go/dswp/pkg/stage"
	"github.com/dswp-go/dswp/pkg/stitch"
)

// Logger wraps a zerolog.Logger, adding one helper per pass.Run outcome
// shape so callers never hand-format the predicate/reason vocabulary
// themselves.
type Logger struct {
	z zerolog.Logger
}

// Options configures a Logger. A zero-value Options is valid: it writes
// JSON output to os.Stderr at zerolog's zero-value level (debug).
type Options struct {
	Writer        io.Writer
	Level         zerolog.Level
	HumanReadable bool
}

// New builds a Logger from opts.
func New(opts Options) *Logger {
	var w io.Writer = os.Stderr
	if opts.Writer != nil {
		w = opts.Writer
	}
	if opts.HumanReadable {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	z := zerolog.New(w).With().Timestamp().Logger().Level(opts.Level)
	return &Logger{z: z}
}

// Accepted logs a successful transformation: stage count, the loop's
// procedure name, and — when the loop has one — the governing induction
// variable's SCCDAG node (SPEC_FULL.md §13, informational only, mirroring
// the original's printLoop/printSCCs debug idiom).
func (l *Logger) Accepted(procName string, stageCount int, li *loopinfo.LoopDependenceInfo) {
	event := l.z.Info().
		Str("procedure", procName).
		Int("stages", stageCount)
	if li != nil && li.HasGoverningIV {
		event = event.Int("governing_iv", int(li.GoverningIV))
	}
	event.Msg("dswp: loop transformed")
}

// Refused logs a pass.Run failure, classifying it by the three categories
// spec.md §7 defines and surfacing the concrete predicate/reason string
// where the underlying error carries one.
func (l *Logger) Refused(procName string, err error) {
	category, event := l.categorize(err)
	event.
		Str("procedure", procName).
		Str("category", category).
		Str("predicate", predicateOf(err)).
		Err(err).
		Msg("dswp: loop not transformed")
}

func (l *Logger) categorize(err error) (string, *zerolog.Event) {
	switch {
	case errors.Is(err, pass.ErrInternal):
		return "internal", l.z.Error()
	case errors.Is(err, pass.ErrEnvironment):
		return "environment", l.z.Warn()
	case errors.Is(err, pass.ErrIneligible):
		return "ineligible", l.z.Warn()
	default:
		return "unknown", l.z.Warn()
	}
}

// predicateOf pulls the named failing predicate or reason out of whichever
// concrete error type is in err's chain, so Refused's diagnostic line
// names it directly rather than relying on a caller to parse Error().
func predicateOf(err error) string {
	var ineligible *planner.IneligibleError
	if errors.As(err, &ineligible) {
		return ineligible.Predicate
	}
	var loopErr *loopinfo.Error
	if errors.As(err, &loopErr) {
		return loopErr.Reason
	}
	var already *stitch.AlreadyStitchedError
	if errors.As(err, &already) {
		return "already_stitched"
	}
	var stageInternal *stage.InternalError
	if errors.As(err, &stageInternal) {
		return stageInternal.Reason
	}
	var stitchInternal *stitch.InternalError
	if errors.As(err, &stitchInternal) {
		return stitchInternal.Reason
	}
	return ""
}

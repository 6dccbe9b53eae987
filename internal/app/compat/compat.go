// Package compat implements the compatibility checks §4.4 uses to decide
// whether a unit may be selected: a Jig's test-file/test-program probe, and
// every other kind's "at least one declared jig is currently selected" rule.
package compat

import (
	"context"
	"fmt"
	"os"

	"jigctl/internal/app/errors"
	"jigctl/internal/app/process"
	"jigctl/internal/app/unit"
	"jigctl/internal/app/unitfile"
	"jigctl/internal/config"
)

// JigSelected reports whether a named jig is currently selected; satisfied
// by Manager.JigIsLoaded.
type JigSelected func(name unit.Name) bool

// Jig checks a Jig description's compatibility probes (§4.4): its optional
// TestFile must exist, and if a TestProgram is given it must exit 0 within
// cfg's probe timeout. stdout/stderr are drained and discarded: they are
// neither consulted for the outcome nor retained anywhere.
func Jig(ctx context.Context, cfg *config.Config, d *unitfile.Jig) error {
	if d.TestFile != "" {
		if _, err := os.Stat(d.TestFile); err != nil {
			return errors.ErrTestFileNotPresent
		}
	}

	if len(d.TestProgram) == 0 {
		return nil
	}

	p, err := process.Spawn(ctx, process.Options{
		Name:        d.TestProgram[0],
		Args:        d.TestProgram,
		WorkDir:     d.WorkDir,
		PathPrepend: cfg.Process.PATH,
		Timeout:     cfg.Timeouts.Probe,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrProbeProgramFailed, err)
	}

	drain(p)

	<-p.Done()

	if p.ExitCode() != 0 {
		return errors.ErrProbeProgramFailed
	}

	return nil
}

// drain hands both stdio streams to background readers so the probe process
// cannot block on a full pipe buffer; the lines themselves are diagnostic
// only and are not consulted for the compatibility outcome (§4.4).
func drain(p process.Process) {
	if out, err := p.TakeOutput(); err == nil {
		go func() {
			for range out { //nolint:revive // drain only
			}
		}()
	}

	if errCh, err := p.TakeError(); err == nil {
		go func() {
			for range errCh { //nolint:revive // drain only
			}
		}()
	}
}

// JigList checks the "at least one listed jig currently selected" rule
// (§4.4, §9) that every non-Jig kind uses. An empty list is universally
// compatible.
func JigList(jigs []unit.Name, selected JigSelected) error {
	if len(jigs) == 0 {
		return nil
	}

	for _, j := range jigs {
		if selected(j) {
			return nil
		}
	}

	return errors.ErrNoMatchingJig
}

// Check dispatches to Jig or JigList based on d's kind, the single entry
// point both Library and Manager use to decide compatibility.
func Check(ctx context.Context, cfg *config.Config, d unitfile.Description, selected JigSelected) error {
	if jig, ok := d.(*unitfile.Jig); ok {
		return Jig(ctx, cfg, jig)
	}

	return JigList(d.Jigs(), selected)
}

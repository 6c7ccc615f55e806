/*
Copyright © 2024 the nemodriver authors.
This file is part of nemodriver.

nemodriver is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

nemodriver is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with nemodriver.  If not, see <http://www.gnu.org/licenses/>.
*/

package nemodriver

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultStallThreshold is how long run.stat may go without being
// updated before a run is reported as stopped.
const DefaultStallThreshold = 3 * time.Minute

const secondsPerDay = 86400

// RunFiles holds the paths of the files a NEMO run directory is
// inspected through.
type RunFiles struct {
	// Layout is written once when the model starts.
	Layout string
	// RunStat gets a line appended at every time step.
	RunStat string

	NamelistRef, NamelistCfg string
}

// DefaultRunFiles returns the standard file names inside run directory dir.
func DefaultRunFiles(dir string) RunFiles {
	return RunFiles{
		Layout:      filepath.Join(dir, "layout.dat"),
		RunStat:     filepath.Join(dir, "run.stat"),
		NamelistRef: filepath.Join(dir, DefaultNamelistRef),
		NamelistCfg: filepath.Join(dir, DefaultNamelistCfg),
	}
}

// RunStatus is a snapshot of the progress of a model run.
type RunStatus struct {
	Start, LastUpdate, Now time.Time

	// Iterations is the number of completed iterations and
	// TotalIterations the number the run is configured for.
	Iterations, TotalIterations int

	// Timestep is the model time step in seconds.
	Timestep float64

	StallThreshold time.Duration
}

// ParseIterationCount returns the iteration count from the last line
// of a run.stat file, which looks like "it :      96    |ssh|_max: ...".
func ParseIterationCount(file string) (int, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, fmt.Errorf("nemodriver: reading run status: %w", err)
	}
	defer f.Close()
	return parseIterationCount(f, file)
}

func parseIterationCount(r io.Reader, name string) (int, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var last string
	var seen bool
	for s.Scan() {
		last, seen = s.Text(), true
	}
	if err := s.Err(); err != nil {
		return 0, fmt.Errorf("nemodriver: reading run status %s: %w", name, err)
	}
	if !seen {
		return 0, fmt.Errorf("nemodriver: run status %s: %w", name, ErrEmptyFile)
	}
	words := strings.Fields(last)
	if len(words) < 3 || words[0] != "it" {
		return 0, fmt.Errorf("nemodriver: run status %s: unexpected last line %q", name, last)
	}
	n, err := strconv.Atoi(words[2])
	if err != nil {
		return 0, fmt.Errorf("nemodriver: run status %s: iteration count: %w", name, err)
	}
	return n, nil
}

// ReadRunStatus collects the status of the run described by files,
// taking the current time from clock.
func ReadRunStatus(files RunFiles, clock clockwork.Clock, stallThreshold time.Duration) (*RunStatus, error) {
	layout, err := os.Stat(files.Layout)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: run start time: %w", err)
	}
	stat, err := os.Stat(files.RunStat)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: run last update: %w", err)
	}
	s := &RunStatus{
		Start:          layout.ModTime(),
		LastUpdate:     stat.ModTime(),
		Now:            clock.Now(),
		StallThreshold: stallThreshold,
	}
	if s.Iterations, err = ParseIterationCount(files.RunStat); err != nil {
		return nil, err
	}
	if s.TotalIterations, err = ParseTotalIterCount(files.NamelistRef, files.NamelistCfg); err != nil {
		return nil, err
	}
	if s.Timestep, err = ParseTimestep(files.NamelistRef, files.NamelistCfg); err != nil {
		return nil, err
	}
	return s, nil
}

// SinceUpdate returns the whole seconds since run.stat was last written.
func (s *RunStatus) SinceUpdate() int64 {
	return roundSeconds(s.Now.Sub(s.LastUpdate).Seconds())
}

// Running reports whether the run has been updated recently.
func (s *RunStatus) Running() bool {
	return float64(s.SinceUpdate()) < s.StallThreshold.Seconds()
}

// Elapsed returns the wall clock seconds since the run started.
func (s *RunStatus) Elapsed() float64 {
	return s.Now.Sub(s.Start).Seconds()
}

// IterationRate returns completed iterations per wall clock second.
func (s *RunStatus) IterationRate() float64 {
	e := s.Elapsed()
	if e <= 0 {
		return 0
	}
	return float64(s.Iterations) / e
}

// SimulatedSeconds returns the model time covered so far.
func (s *RunStatus) SimulatedSeconds() int64 {
	return roundSeconds(float64(s.Iterations) * s.Timestep)
}

// TotalSimulatedSeconds returns the model time the run will cover.
func (s *RunStatus) TotalSimulatedSeconds() int64 {
	return roundSeconds(float64(s.TotalIterations) * s.Timestep)
}

// WallclockPerDay returns the wall clock seconds needed to simulate
// one model day. ok is false while the rate is unknown.
func (s *RunStatus) WallclockPerDay() (seconds int64, ok bool) {
	return s.projection(secondsPerDay / s.Timestep)
}

// WallclockTotal returns the wall clock seconds the whole run needs.
func (s *RunStatus) WallclockTotal() (seconds int64, ok bool) {
	return s.projection(float64(s.TotalIterations))
}

// WallclockRemaining returns the wall clock seconds until the run ends.
func (s *RunStatus) WallclockRemaining() (seconds int64, ok bool) {
	return s.projection(float64(s.TotalIterations - s.Iterations))
}

// projection returns the wall clock time needed for iters iterations
// at the current rate.
func (s *RunStatus) projection(iters float64) (int64, bool) {
	rate := s.IterationRate()
	if rate <= 0 || math.IsInf(iters, 0) || math.IsNaN(iters) {
		return 0, false
	}
	return roundSeconds(iters / rate), true
}

// WriteReport writes a human readable progress report to w.
func (s *RunStatus) WriteReport(w io.Writer) error {
	ew := &errWriter{w: w}
	ew.printf("Run started at %s\n", formatStartTime(s.Start))
	if s.Running() {
		ew.printf("Status: Running\n")
	} else {
		ew.printf("Status: STOPPED\n")
		ew.printf("  last update %s ago\n", formatTimedelta(s.SinceUpdate()))
	}
	ew.printf("Run time: %s\n", formatTimedelta(roundSeconds(s.Elapsed())))
	ew.printf("Completed %d/%d iterations with dt=%s s\n", s.Iterations, s.TotalIterations, formatFloat(s.Timestep))
	ew.printf("Current simulation time: %s\n", formatTimedelta(s.SimulatedSeconds()))
	ew.printf("Total simulation time: %s\n", formatTimedelta(s.TotalSimulatedSeconds()))
	ew.printf("Wallclock time for\n")
	ew.printf("    one day: %s\n", formatProjection(s.WallclockPerDay()))
	ew.printf(" entire run: %s\n", formatProjection(s.WallclockTotal()))
	ew.printf("Remaining wallclock time: %s\n", formatProjection(s.WallclockRemaining()))
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// roundSeconds rounds half to even.
func roundSeconds(s float64) int64 {
	return int64(math.RoundToEven(s))
}

func formatProjection(seconds int64, ok bool) string {
	if !ok {
		return "unknown"
	}
	return formatTimedelta(seconds)
}

// formatTimedelta formats seconds as "[D day[s], ]H:MM:SS". Negative
// durations carry a negative day count and a positive clock part.
func formatTimedelta(seconds int64) string {
	days := seconds / secondsPerDay
	rem := seconds % secondsPerDay
	if rem < 0 {
		days--
		rem += secondsPerDay
	}
	hms := fmt.Sprintf("%d:%02d:%02d", rem/3600, rem%3600/60, rem%60)
	if days == 0 {
		return hms
	}
	plural := "s"
	if days == 1 || days == -1 {
		plural = ""
	}
	return fmt.Sprintf("%d day%s, %s", days, plural, hms)
}

// formatStartTime formats t in local time, adding microseconds only
// when there are any.
func formatStartTime(t time.Time) string {
	t = t.Local()
	s := t.Format("2006-01-02 15:04:05")
	if us := t.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}

// formatFloat always shows a fractional part for whole numbers.
func formatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e16 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

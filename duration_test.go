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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRunDir creates a run directory whose model started at start and
// last wrote run.stat at lastUpdate.
func setupRunDir(t *testing.T, start, lastUpdate time.Time, runStat string) RunFiles {
	t.Helper()
	dir := t.TempDir()
	files := DefaultRunFiles(dir)
	writeTestFile(t, dir, DefaultNamelistRef, testNamelistRef)
	writeTestFile(t, dir, DefaultNamelistCfg, "&namdom\n   rn_rdt = 900.\n/\n")
	writeTestFile(t, dir, "layout.dat", "domain decomposition\n")
	writeTestFile(t, dir, "run.stat", runStat)
	require.NoError(t, os.Chtimes(files.Layout, start, start))
	require.NoError(t, os.Chtimes(files.RunStat, lastUpdate, lastUpdate))
	return files
}

const testRunStat = ` it :      95    |ssh|_max:  0.1    |U|_max: 0.2    S_min: 30.0    S_max: 35.0
 it :      96    |ssh|_max:  0.1    |U|_max: 0.2    S_min: 30.0    S_max: 35.0
`

func TestRunStatusReport(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.Local)
	now := start.Add(time.Hour)

	t.Run("running", func(t *testing.T) {
		files := setupRunDir(t, start, now.Add(-time.Minute), testRunStat)
		s, err := ReadRunStatus(files, clockwork.NewFakeClockAt(now), DefaultStallThreshold)
		require.NoError(t, err)
		assert.True(t, s.Running())
		assert.Equal(t, 96, s.Iterations)
		assert.Equal(t, 5840, s.TotalIterations)

		var b bytes.Buffer
		require.NoError(t, s.WriteReport(&b))
		want := `Run started at 2024-01-01 00:00:00
Status: Running
Run time: 1:00:00
Completed 96/5840 iterations with dt=900.0 s
Current simulation time: 1 day, 0:00:00
Total simulation time: 60 days, 20:00:00
Wallclock time for
    one day: 1:00:00
 entire run: 2 days, 12:50:00
Remaining wallclock time: 2 days, 11:50:00
`
		assert.Equal(t, want, b.String())
	})

	t.Run("stopped", func(t *testing.T) {
		files := setupRunDir(t, start, now.Add(-10*time.Minute), testRunStat)
		s, err := ReadRunStatus(files, clockwork.NewFakeClockAt(now), DefaultStallThreshold)
		require.NoError(t, err)
		assert.False(t, s.Running())

		var b bytes.Buffer
		require.NoError(t, s.WriteReport(&b))
		assert.Contains(t, b.String(), "Status: STOPPED\n  last update 0:10:00 ago\nRun time: 1:00:00\n")
	})

	t.Run("threshold", func(t *testing.T) {
		files := setupRunDir(t, start, now.Add(-10*time.Minute), testRunStat)
		s, err := ReadRunStatus(files, clockwork.NewFakeClockAt(now), time.Hour)
		require.NoError(t, err)
		assert.True(t, s.Running())
	})

	t.Run("no iterations", func(t *testing.T) {
		files := setupRunDir(t, start, now, " it :       0\n")
		s, err := ReadRunStatus(files, clockwork.NewFakeClockAt(now), DefaultStallThreshold)
		require.NoError(t, err)
		var b bytes.Buffer
		require.NoError(t, s.WriteReport(&b))
		assert.Contains(t, b.String(), "    one day: unknown\n entire run: unknown\nRemaining wallclock time: unknown\n")
		_, ok := s.WallclockRemaining()
		assert.False(t, ok)
	})

	t.Run("missing layout", func(t *testing.T) {
		files := setupRunDir(t, start, now, testRunStat)
		require.NoError(t, os.Remove(files.Layout))
		_, err := ReadRunStatus(files, clockwork.NewFakeClockAt(now), DefaultStallThreshold)
		assert.Error(t, err)
	})
}

func TestParseIterationCount(t *testing.T) {
	tests := []struct {
		name, contents string
		want           int
		err            bool
	}{
		{name: "last line", contents: testRunStat, want: 96},
		{name: "no trailing newline", contents: " it : 12 |ssh|_max: 0.1", want: 12},
		{name: "empty", contents: "", err: true},
		{name: "not an iteration line", contents: " it : 12\nabort\n", err: true},
		{name: "bad count", contents: " it : twelve\n", err: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			n, err := parseIterationCount(strings.NewReader(test.contents), "run.stat")
			if test.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, n)
		})
	}
}

func TestFormatTimedelta(t *testing.T) {
	for seconds, want := range map[int64]string{
		0:       "0:00:00",
		59:      "0:00:59",
		3661:    "1:01:01",
		86400:   "1 day, 0:00:00",
		90061:   "1 day, 1:01:01",
		172800:  "2 days, 0:00:00",
		-1:      "-1 day, 23:59:59",
		-172800: "-2 days, 0:00:00",
	} {
		assert.Equal(t, want, formatTimedelta(seconds), "%d seconds", seconds)
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "900.0", formatFloat(900))
	assert.Equal(t, "1234.5", formatFloat(1234.5))
	assert.Equal(t, "0.25", formatFloat(0.25))

	ts := time.Date(2024, time.May, 2, 3, 4, 5, 0, time.Local)
	assert.Equal(t, "2024-05-02 03:04:05", formatStartTime(ts))
	assert.Equal(t, "2024-05-02 03:04:05.250000", formatStartTime(ts.Add(250*time.Millisecond)))

	assert.Equal(t, int64(2), roundSeconds(2.5))
	assert.Equal(t, int64(4), roundSeconds(3.5))
}

func TestWriteMetrics(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.Local)
	now := start.Add(time.Hour)
	files := setupRunDir(t, start, now.Add(-time.Minute), testRunStat)
	s, err := ReadRunStatus(files, clockwork.NewFakeClockAt(now), DefaultStallThreshold)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "nemo.prom")
	require.NoError(t, s.WriteMetrics(out))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(b)
	for _, line := range []string{
		"nemo_run_running 1",
		"nemo_run_iterations_completed 96",
		"nemo_run_iterations_total 5840",
		"nemo_run_timestep_seconds 900",
		"nemo_run_elapsed_seconds 3600",
		"nemo_run_last_update_age_seconds 60",
		"nemo_run_remaining_seconds 215400",
	} {
		assert.Contains(t, text, line+"\n")
	}
}

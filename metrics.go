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
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Gatherer returns a registry holding the run status as gauges.
// The remaining time is only included when it is known.
func (s *RunStatus) Gatherer() prometheus.Gatherer {
	reg := prometheus.NewRegistry()
	gauge := func(name, help string, v float64) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nemo",
			Subsystem: "run",
			Name:      name,
			Help:      help,
		})
		g.Set(v)
		reg.MustRegister(g)
	}
	running := 0.
	if s.Running() {
		running = 1
	}
	gauge("running", "Whether run.stat was updated within the stall threshold.", running)
	gauge("iterations_completed", "Number of completed model iterations.", float64(s.Iterations))
	gauge("iterations_total", "Number of iterations the run is configured for.", float64(s.TotalIterations))
	gauge("timestep_seconds", "Model time step.", s.Timestep)
	gauge("elapsed_seconds", "Wall clock time since the run started.", s.Elapsed())
	gauge("last_update_age_seconds", "Time since run.stat was last written.", float64(s.SinceUpdate()))
	if r, ok := s.WallclockRemaining(); ok {
		gauge("remaining_seconds", "Estimated wall clock time until the run ends.", float64(r))
	}
	return reg
}

// WriteMetrics writes the run status to filename in the Prometheus
// text format read by the node exporter textfile collector.
func (s *RunStatus) WriteMetrics(filename string) error {
	if err := prometheus.WriteToTextfile(filename, s.Gatherer()); err != nil {
		return fmt.Errorf("nemodriver: writing metrics: %w", err)
	}
	return nil
}

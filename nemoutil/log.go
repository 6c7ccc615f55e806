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

package nemoutil

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// newLogger returns a logger writing to w. Verbosity 0 logs warnings
// and errors, 1 adds progress information and 2 or more adds debugging output.
func newLogger(w io.Writer, verbosity int) *logrus.Logger {
	log := logrus.New()
	log.Out = w
	log.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableSorting:  true,
	}
	switch {
	case verbosity >= 2:
		log.Level = logrus.DebugLevel
	case verbosity == 1:
		log.Level = logrus.InfoLevel
	default:
		log.Level = logrus.WarnLevel
	}
	return log
}

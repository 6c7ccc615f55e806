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

// Package nemodriver contains the building blocks of the NEMO monthly driver:
// reading namelist parameters, counting time steps, reporting the progress
// of a running simulation, linking restart files between run directories,
// compressing model output and extracting vertical transects from it.
package nemodriver

import "github.com/sirupsen/logrus"

// Version gives the version number.
const Version = "1.0.0"

// logger returns l, or the standard logger when l is nil.
func logger(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}

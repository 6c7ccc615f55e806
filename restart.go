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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNoRestartFiles is returned when a directory holds no restart files
// for processor 0.
var ErrNoRestartFiles = errors.New("no restart files found")

const restartProc0Suffix = "_0000.nc"

// Link is a symbolic link at Name pointing to Target.
type Link struct {
	Name, Target string
}

func (l Link) String() string { return l.Name + " -> " + l.Target }

// LinkOptions control SymlinkRestartFiles.
type LinkOptions struct {
	// Force replaces files or links already present at a link path.
	Force bool
	// DryRun computes the links without creating them.
	DryRun bool

	// Out, if not nil, receives one line per link.
	Out io.Writer
	Log logrus.FieldLogger
}

// SymlinkRestartFiles links the latest set of per-processor restart
// files in inDir whose names contain inputName into outDir, naming
// the links outputName_<proc>.nc. Link targets are relative to outDir.
func SymlinkRestartFiles(inDir, inputName, outDir, outputName string, o LinkOptions) ([]Link, error) {
	log := logger(o.Log)

	proc0Pattern := filepath.Join(inDir, "*"+inputName+"*"+restartProc0Suffix)
	proc0, err := filepath.Glob(proc0Pattern)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: finding restart files: %w", err)
	}
	if len(proc0) == 0 {
		return nil, fmt.Errorf("nemodriver: %s: %w", proc0Pattern, ErrNoRestartFiles)
	}
	sort.Strings(proc0)
	latest := proc0[len(proc0)-1]
	log.WithField("file", latest).Debug("latest restart")

	pattern := strings.TrimSuffix(latest, restartProc0Suffix) + "_*.nc"
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: finding restart files: %w", err)
	}
	sort.Strings(files)

	absIn, err := filepath.Abs(inDir)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: restart links: %w", err)
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: restart links: %w", err)
	}
	rel, err := filepath.Rel(absOut, absIn)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: restart links: %w", err)
	}

	links := make([]Link, len(files))
	for i, f := range files {
		base := filepath.Base(f)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		proc := stem[strings.LastIndex(stem, "_")+1:]
		links[i] = Link{
			Name:   filepath.Join(outDir, outputName+"_"+proc+".nc"),
			Target: filepath.Join(rel, base),
		}
	}

	for _, l := range links {
		if o.DryRun {
			o.printf("would create link: %s\n", l)
			continue
		}
		o.printf("creating link: %s\n", l)
		if o.Force {
			if err := removeLinkPath(l.Name); err != nil {
				return nil, err
			}
		}
		if err := os.Symlink(l.Target, l.Name); err != nil {
			return nil, fmt.Errorf("nemodriver: creating restart link: %w", err)
		}
		log.WithFields(logrus.Fields{"link": l.Name, "target": l.Target}).Debug("linked")
	}
	return links, nil
}

func (o LinkOptions) printf(format string, args ...interface{}) {
	if o.Out != nil {
		fmt.Fprintf(o.Out, format, args...)
	}
}

// removeLinkPath removes a file or link at path. Directories are left alone.
func removeLinkPath(path string) error {
	fi, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("nemodriver: replacing %s: %w", path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("nemodriver: replacing %s: is a directory", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("nemodriver: replacing %s: %w", path, err)
	}
	return nil
}

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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nemodriver/nemodriver"
	"github.com/spf13/cast"
)

func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// getArgs returns option varName as a list of command-line arguments.
// The value may be a single white space separated string, as given on
// the command line, or a list, as allowed in configuration files.
func (cfg *Cfg) getArgs(varName string) ([]string, error) {
	switch v := cfg.Get(varName).(type) {
	case nil:
		return nil, nil
	case string:
		return strings.Fields(v), nil
	default:
		s, err := cast.ToStringSliceE(v)
		if err != nil {
			return nil, fmt.Errorf("nemodriver: invalid value for %s: %v", varName, err)
		}
		return s, nil
	}
}

func (cfg *Cfg) compressOptions() (nemodriver.CompressOptions, error) {
	args, err := cfg.getArgs("compression-options")
	if err != nil {
		return nemodriver.CompressOptions{}, err
	}
	return nemodriver.CompressOptions{
		Options:      strings.Join(args, " "),
		NCCopy:       os.ExpandEnv(cfg.GetString("nccopy")),
		DeleteSource: cfg.GetBool("delete-source"),
		Log:          cfg.log,
	}, nil
}

// runFiles returns the files of the run directory given by the
// rundir option. Relative namelist paths are relative to that directory.
func (cfg *Cfg) runFiles() nemodriver.RunFiles {
	dir := os.ExpandEnv(cfg.GetString("rundir"))
	files := nemodriver.DefaultRunFiles(dir)
	files.NamelistRef = inDir(dir, os.ExpandEnv(cfg.GetString("namelist-ref")))
	files.NamelistCfg = inDir(dir, os.ExpandEnv(cfg.GetString("namelist-cfg")))
	return files
}

func inDir(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

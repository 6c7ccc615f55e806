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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRestartDirs(t *testing.T) (in, out string) {
	t.Helper()
	root := t.TempDir()
	in = filepath.Join(root, "run01")
	out = filepath.Join(root, "run02")
	require.NoError(t, os.Mkdir(in, 0755))
	require.NoError(t, os.Mkdir(out, 0755))
	for _, name := range []string{
		"NORDIC_00000960_restart_out_0000.nc",
		"NORDIC_00000960_restart_out_0001.nc",
		"NORDIC_00001920_restart_out_0000.nc",
		"NORDIC_00001920_restart_out_0001.nc",
		"NORDIC_00001920_restart_out_0002.nc",
		"NORDIC_00001920_restart_ice_0000.nc",
	} {
		writeTestFile(t, in, name, "")
	}
	return in, out
}

func TestSymlinkRestartFiles(t *testing.T) {
	in, out := setupRestartDirs(t)

	var b bytes.Buffer
	links, err := SymlinkRestartFiles(in, "restart_out", out, "restart_in", LinkOptions{Out: &b})
	require.NoError(t, err)
	require.Len(t, links, 3)

	for i, proc := range []string{"0000", "0001", "0002"} {
		name := filepath.Join(out, "restart_in_"+proc+".nc")
		target := filepath.Join("..", "run01", "NORDIC_00001920_restart_out_"+proc+".nc")
		assert.Equal(t, Link{Name: name, Target: target}, links[i])

		have, err := os.Readlink(name)
		require.NoError(t, err)
		assert.Equal(t, target, have)
		_, err = os.Stat(name)
		assert.NoError(t, err, "link should resolve")
	}
	assert.Contains(t, b.String(), "creating link: "+filepath.Join(out, "restart_in_0000.nc")+" -> ")

	_, err = SymlinkRestartFiles(in, "restart_out", out, "restart_in", LinkOptions{})
	assert.Error(t, err, "links exist without force")

	links, err = SymlinkRestartFiles(in, "restart_out", out, "restart_in", LinkOptions{Force: true})
	require.NoError(t, err)
	assert.Len(t, links, 3)
}

func TestSymlinkRestartFilesDryRun(t *testing.T) {
	in, out := setupRestartDirs(t)
	var b bytes.Buffer
	links, err := SymlinkRestartFiles(in, "restart_ice", out, "restart_ice_in", LinkOptions{DryRun: true, Out: &b})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, filepath.Join(out, "restart_ice_in_0000.nc"), links[0].Name)
	assert.Contains(t, b.String(), "would create link")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSymlinkRestartFilesNone(t *testing.T) {
	in, out := setupRestartDirs(t)
	_, err := SymlinkRestartFiles(in, "restart_trc", out, "restart_trc_in", LinkOptions{})
	assert.True(t, errors.Is(err, ErrNoRestartFiles), "have %v", err)
}

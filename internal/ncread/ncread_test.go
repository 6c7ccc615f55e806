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

package ncread

import (
	"path/filepath"
	"testing"

	"github.com/nemodriver/nemodriver/internal/nctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, format nctest.Format) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.nc")
	// Two records of a (time, y, x) field with y=2, x=3.
	field := []float32{0, 1, 2, 3, 4, 5, 10, 11, 12, 13, 14, 15}
	err := nctest.Write(path, nctest.File{
		Format:  format,
		Dims:    []string{"time", "y", "x"},
		Lengths: []int{0, 2, 3},
		Vars: []nctest.Var{
			{Name: "lat", Dims: []string{"y", "x"}, Data: []float64{50, 50, 50, 51, 51, 51},
				Attrs: map[string]interface{}{"units": "degrees_north"}},
			{Name: "time", Dims: []string{"time"}, Data: []float64{3600, 7200},
				Attrs: map[string]interface{}{"units": "seconds since 2016-01-01", "calendar": "gregorian"}},
			{Name: "temp", Dims: []string{"time", "y", "x"}, Data: field,
				Attrs: map[string]interface{}{nctest.FillAttribute(format): []float32{1e20}, "units": "degC"}},
		},
		Attrs: map[string]interface{}{"title": "ncread test"},
	})
	require.NoError(t, err)
	return path
}

func TestRead(t *testing.T) {
	for _, test := range []struct {
		name   string
		format nctest.Format
	}{
		{name: "classic", format: nctest.Classic},
		{name: "netcdf4", format: nctest.NetCDF4},
	} {
		t.Run(test.name, func(t *testing.T) {
			f, err := Open(writeTestFile(t, test.format))
			require.NoError(t, err)
			defer f.Close()

			assert.Equal(t, []string{"lat", "temp", "time"}, f.Variables())
			assert.True(t, f.HasVariable("temp"))
			assert.False(t, f.HasVariable("salt"))

			shape, err := f.Shape("temp")
			require.NoError(t, err)
			assert.Equal(t, []int{2, 2, 3}, shape)

			lat, err := f.Read("lat")
			require.NoError(t, err)
			assert.Equal(t, []int{2, 3}, lat.Shape)
			assert.Equal(t, 51., lat.Get(1, 2))

			rec, err := f.ReadRecord("temp", 1)
			require.NoError(t, err)
			assert.Equal(t, []int{2, 3}, rec.Shape)
			assert.Equal(t, 14., rec.Get(1, 1))

			_, err = f.ReadRecord("temp", 2)
			assert.Error(t, err)
			_, err = f.Read("salt")
			assert.Error(t, err)

			units, ok := f.Attribute("time", "units")
			require.True(t, ok)
			s, ok := units.String()
			assert.True(t, ok)
			assert.Equal(t, "seconds since 2016-01-01", s)

			fill, ok := f.Attribute("temp", nctest.FillAttribute(test.format))
			require.True(t, ok)
			v, ok := fill.Float64s()
			require.True(t, ok)
			assert.InDelta(t, 1e20, v[0], 1e14)

			var names []string
			for _, a := range f.GlobalAttributes() {
				names = append(names, a.Name)
			}
			assert.Equal(t, []string{"title"}, names)
		})
	}
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want []float64
	}{
		{name: "scalar", in: float32(2.5), want: []float64{2.5}},
		{name: "int", in: int64(7), want: []float64{7}},
		{name: "flat", in: []float32{1, 2}, want: []float64{1, 2}},
		{name: "nested", in: [][]float64{{1, 2}, {3, 4}}, want: []float64{1, 2, 3, 4}},
		{name: "nested ints", in: [][][]int8{{{1}, {2}}, {{3}, {4}}}, want: []float64{1, 2, 3, 4}},
		{name: "unsigned", in: []uint16{5}, want: []float64{5}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			have, err := flatten(test.in)
			require.NoError(t, err)
			assert.Equal(t, test.want, have)
		})
	}
	_, err := flatten("text")
	assert.Error(t, err)
}

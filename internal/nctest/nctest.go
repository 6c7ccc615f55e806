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

// Package nctest writes small netCDF files for tests, in either the
// classic or the netCDF-4 (HDF5) format.
package nctest

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/ctessum/cdf"
)

// Format is a netCDF file format.
type Format int

const (
	// Classic is the netCDF classic format.
	Classic Format = iota
	// NetCDF4 is the HDF5-based format NEMO writes.
	NetCDF4
)

// Var is a variable to be written. Data holds the values of the whole
// variable in row-major order as []float32, []float64, []int32 or []int16.
type Var struct {
	Name  string
	Dims  []string
	Data  interface{}
	Attrs map[string]interface{}
}

// File describes a netCDF file. A dimension of length 0 is the
// record dimension. NetCDF4 files have no unlimited dimension, so
// there its length is taken from the data, and they cannot carry
// attributes whose names start with an underscore, such as _FillValue.
type File struct {
	Format  Format
	Dims    []string
	Lengths []int
	Vars    []Var
	Attrs   map[string]interface{}
}

// FillAttribute returns the name of the attribute that marks missing
// values in files of format.
func FillAttribute(format Format) string {
	if format == NetCDF4 {
		return "missing_value"
	}
	return "_FillValue"
}

// Write creates the file at path.
func Write(path string, f File) error {
	if f.Format == NetCDF4 {
		return writeHDF5(path, f)
	}
	h := cdf.NewHeader(f.Dims, f.Lengths)
	for _, v := range f.Vars {
		h.AddVariable(v.Name, v.Dims, zero(v.Data))
		addAttributes(h, v.Name, v.Attrs)
	}
	addAttributes(h, "", f.Attrs)
	h.Define()

	w, err := os.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()
	cf, err := cdf.Create(w, h)
	if err != nil {
		return err
	}
	for _, v := range f.Vars {
		if _, err := cf.Writer(v.Name, nil, nil).Write(v.Data); err != nil && err != io.EOF {
			return fmt.Errorf("nctest: writing %s: %w", v.Name, err)
		}
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		return err
	}
	return w.Close()
}

func writeHDF5(path string, f File) error {
	lengths := make(map[string]int, len(f.Dims))
	for i, d := range f.Dims {
		lengths[d] = f.Lengths[i]
	}
	w, err := netcdf.OpenWriter(path, netcdf.KindHDF5)
	if err != nil {
		return err
	}
	for _, v := range f.Vars {
		shape, err := varShape(v, lengths)
		if err != nil {
			w.Close()
			return err
		}
		err = w.AddVar(v.Name, api.Variable{
			Values:     nest(reflect.ValueOf(v.Data), shape).Interface(),
			Dimensions: v.Dims,
			Attributes: attributeMap(v.Attrs),
		})
		if err != nil {
			w.Close()
			return fmt.Errorf("nctest: adding %s: %w", v.Name, err)
		}
	}
	if err := w.AddAttributes(attributeMap(f.Attrs)); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// varShape returns the dimension lengths of v, resolving the record
// dimension from the length of v.Data.
func varShape(v Var, lengths map[string]int) ([]int, error) {
	n := reflect.ValueOf(v.Data).Len()
	shape := make([]int, len(v.Dims))
	rec, size := -1, 1
	for i, d := range v.Dims {
		l, ok := lengths[d]
		if !ok {
			return nil, fmt.Errorf("nctest: %s: unknown dimension %q", v.Name, d)
		}
		if l == 0 {
			rec = i
			continue
		}
		shape[i] = l
		size *= l
	}
	if rec >= 0 {
		shape[rec] = n / size
		size *= shape[rec]
	}
	if size == 0 || size != n {
		return nil, fmt.Errorf("nctest: %s: have %d values for dimensions %v", v.Name, n, v.Dims)
	}
	return shape, nil
}

// nest reshapes flat slice data into nested slices of the given shape.
func nest(data reflect.Value, shape []int) reflect.Value {
	if len(shape) <= 1 {
		return data
	}
	n := data.Len() / shape[0]
	var out reflect.Value
	for i := 0; i < shape[0]; i++ {
		inner := nest(data.Slice(i*n, (i+1)*n), shape[1:])
		if i == 0 {
			out = reflect.MakeSlice(reflect.SliceOf(inner.Type()), shape[0], shape[0])
		}
		out.Index(i).Set(inner)
	}
	return out
}

func attributeMap(attrs map[string]interface{}) api.AttributeMap {
	names := make([]string, 0, len(attrs))
	vals := make(map[string]interface{}, len(attrs))
	for name, v := range attrs {
		names = append(names, name)
		vals[name] = v
	}
	sort.Strings(names)
	m, _ := util.NewOrderedMap(names, vals)
	return m
}

func addAttributes(h *cdf.Header, v string, attrs map[string]interface{}) {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.AddAttribute(v, name, attrs[name])
	}
}

func zero(data interface{}) interface{} {
	switch data.(type) {
	case []float32:
		return []float32{0}
	case []float64:
		return []float64{0}
	case []int32:
		return []int32{0}
	case []int16:
		return []int16{0}
	}
	panic(fmt.Sprintf("nctest: unsupported data type %T", data))
}

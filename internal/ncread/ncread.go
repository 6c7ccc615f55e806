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

// Package ncread reads variables and attributes from netCDF files in
// either the classic or the netCDF-4 (HDF5) format.
package ncread

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/sparse"
)

// Attribute is a named netCDF attribute. Value holds a string, a
// numeric scalar or a numeric slice.
type Attribute struct {
	Name  string
	Value interface{}
}

// String returns the attribute value if it is text.
func (a Attribute) String() (string, bool) {
	s, ok := a.Value.(string)
	return s, ok
}

// Float64s returns a numeric attribute value as float64s.
func (a Attribute) Float64s() ([]float64, bool) {
	if _, ok := a.Value.(string); ok {
		return nil, false
	}
	v, err := flatten(a.Value)
	if err != nil || len(v) == 0 {
		return nil, false
	}
	return v, true
}

// File is an open netCDF file.
type File struct {
	path string
	nc   api.Group
}

// Open opens the netCDF file at path.
func Open(path string) (*File, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ncread: opening %s: %w", path, err)
	}
	return &File{path: path, nc: nc}, nil
}

// Close closes the file.
func (f *File) Close() { f.nc.Close() }

// Path returns the path the file was opened from.
func (f *File) Path() string { return f.path }

// Variables returns the sorted variable names.
func (f *File) Variables() []string {
	v := append([]string(nil), f.nc.ListVariables()...)
	sort.Strings(v)
	return v
}

// GlobalAttributes returns the file attributes in file order.
func (f *File) GlobalAttributes() []Attribute {
	return attributes(f.nc.Attributes())
}

func (f *File) getter(name string) (api.VarGetter, error) {
	vg, err := f.nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("ncread: %s: variable %q: %w", f.path, name, err)
	}
	return vg, nil
}

// HasVariable reports whether the file contains variable name.
func (f *File) HasVariable(name string) bool {
	for _, v := range f.nc.ListVariables() {
		if v == name {
			return true
		}
	}
	return false
}

// Shape returns the dimension lengths of variable name.
func (f *File) Shape(name string) ([]int, error) {
	vg, err := f.getter(name)
	if err != nil {
		return nil, err
	}
	return shape(vg.Shape()), nil
}

// Attributes returns the attributes of variable name in file order.
func (f *File) Attributes(name string) ([]Attribute, error) {
	vg, err := f.getter(name)
	if err != nil {
		return nil, err
	}
	return attributes(vg.Attributes()), nil
}

// Attribute returns attribute attr of variable name.
func (f *File) Attribute(name, attr string) (Attribute, bool) {
	attrs, err := f.Attributes(name)
	if err != nil {
		return Attribute{}, false
	}
	for _, a := range attrs {
		if a.Name == attr {
			return a, true
		}
	}
	return Attribute{}, false
}

// Read reads the whole of numeric variable name.
func (f *File) Read(name string) (*sparse.DenseArray, error) {
	vg, err := f.getter(name)
	if err != nil {
		return nil, err
	}
	vals, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("ncread: %s: reading %q: %w", f.path, name, err)
	}
	return f.dense(name, vals, shape(vg.Shape()))
}

// ReadRecord reads index rec of the outermost dimension of variable
// name, returning an array with that dimension removed.
func (f *File) ReadRecord(name string, rec int) (*sparse.DenseArray, error) {
	vg, err := f.getter(name)
	if err != nil {
		return nil, err
	}
	s := shape(vg.Shape())
	if len(s) == 0 {
		return nil, fmt.Errorf("ncread: %s: %q is a scalar", f.path, name)
	}
	if rec < 0 || rec >= s[0] {
		return nil, fmt.Errorf("ncread: %s: %q: record %d out of range [0, %d)", f.path, name, rec, s[0])
	}
	vals, err := vg.GetSlice(int64(rec), int64(rec+1))
	if err != nil {
		return nil, fmt.Errorf("ncread: %s: reading %q record %d: %w", f.path, name, rec, err)
	}
	s = s[1:]
	if len(s) == 0 {
		s = []int{1}
	}
	return f.dense(name, vals, s)
}

func (f *File) dense(name string, vals interface{}, s []int) (*sparse.DenseArray, error) {
	data, err := flatten(vals)
	if err != nil {
		return nil, fmt.Errorf("ncread: %s: %q: %w", f.path, name, err)
	}
	if len(s) == 0 {
		s = []int{1}
	}
	out := sparse.ZerosDense(s...)
	if len(data) != len(out.Elements) {
		return nil, fmt.Errorf("ncread: %s: %q: have %d values for shape %v", f.path, name, len(data), s)
	}
	copy(out.Elements, data)
	return out, nil
}

func shape(s []int64) []int {
	out := make([]int, len(s))
	for i, v := range s {
		out[i] = int(v)
	}
	return out
}

func attributes(m api.AttributeMap) []Attribute {
	if m == nil {
		return nil
	}
	keys := m.Keys()
	out := make([]Attribute, 0, len(keys))
	for _, k := range keys {
		v, _ := m.Get(k)
		out = append(out, Attribute{Name: k, Value: v})
	}
	return out
}

// flatten converts a scalar or an arbitrarily nested numeric slice
// into a flat slice in row-major order.
func flatten(v interface{}) ([]float64, error) {
	var out []float64
	var walk func(v interface{}) error
	walk = func(v interface{}) error {
		switch t := v.(type) {
		case []float64:
			out = append(out, t...)
		case []float32:
			for _, x := range t {
				out = append(out, float64(x))
			}
		case []int32:
			for _, x := range t {
				out = append(out, float64(x))
			}
		case []int16:
			for _, x := range t {
				out = append(out, float64(x))
			}
		default:
			rv := reflect.ValueOf(v)
			switch rv.Kind() {
			case reflect.Slice, reflect.Array:
				for i := 0; i < rv.Len(); i++ {
					if err := walk(rv.Index(i).Interface()); err != nil {
						return err
					}
				}
			case reflect.Float32, reflect.Float64:
				out = append(out, rv.Float())
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				out = append(out, float64(rv.Int()))
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				out = append(out, float64(rv.Uint()))
			default:
				return fmt.Errorf("unsupported value type %T", v)
			}
		}
		return nil
	}
	if err := walk(v); err != nil {
		return nil, err
	}
	return out, nil
}

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
	"io"
	"math"
	"os"
	"reflect"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/nemodriver/nemodriver/internal/ncread"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Variables read from NEMO output and domain configuration files.
const (
	navLatVar     = "nav_lat"
	navLonVar     = "nav_lon"
	depthVar      = "deptht"
	timeVar       = "time_centered"
	bathymetryVar = "bathy_metry"
)

// domainTolerance is the largest coordinate difference, in degrees,
// allowed when matching output grid axes to domain grid axes.
const domainTolerance = 1e-3

// transectVars are the names used in transect files besides the field.
var transectVars = map[string]bool{
	"latitude": true, "longitude": true, "time": true,
	"depth0": true, "depth": true, "depth_bounds": true,
}

// Transect is a vertical section of a model field sampled at a
// sequence of points.
type Transect struct {
	// Variable is the name of the field and Attributes its attributes.
	Variable   string
	Attributes []ncread.Attribute

	// Longitude and Latitude hold the grid coordinates nearest to
	// each transect point.
	Longitude, Latitude []float64

	Time           []float64
	TimeAttributes []ncread.Attribute

	// Depth0 holds the nominal depth of each model level.
	Depth0     []float64
	DepthUnits string

	// Values is indexed by (time, depth, point). Missing values are NaN.
	Values *sparse.DenseArray

	// Depth holds the cell centre depths, indexed by (depth, point),
	// NaN where the field is missing in the first record.
	// DepthBounds holds the cell interfaces, indexed by (depth, point, bound).
	Depth, DepthBounds *sparse.DenseArray

	// Bathymetry is the sea floor depth at each point.
	Bathymetry []float64
}

// ExtractTransect samples variable varName of NEMO output file infile
// along points, whose X and Y are longitude and latitude. The sea floor
// depth comes from NEMO domain configuration file domainfile.
func ExtractTransect(infile, domainfile, varName string, points []geom.Point, log logrus.FieldLogger) (*Transect, error) {
	log = logger(log)
	if len(points) == 0 {
		return nil, fmt.Errorf("nemodriver: transect has no points")
	}
	if transectVars[varName] {
		return nil, fmt.Errorf("nemodriver: variable name %q is reserved in transect files", varName)
	}

	f, err := ncread.Open(infile)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: extracting transect: %w", err)
	}
	defer f.Close()

	if !f.HasVariable(varName) {
		return nil, fmt.Errorf("nemodriver: %s has no variable %q", infile, varName)
	}
	shape, err := f.Shape(varName)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: extracting transect: %w", err)
	}
	if len(shape) != 4 {
		return nil, fmt.Errorf("nemodriver: %s has shape %v; want (time, depth, y, x)", varName, shape)
	}
	nt, nz, np := shape[0], shape[1], len(points)

	gridLat, gridLon, err := gridAxes(f, shape[2], shape[3])
	if err != nil {
		return nil, err
	}
	lons, lats := make([]float64, np), make([]float64, np)
	for p, pt := range points {
		lons[p], lats[p] = pt.X, pt.Y
	}
	ilon, _ := nearestIndices(gridLon, lons)
	ilat, _ := nearestIndices(gridLat, lats)

	t := &Transect{
		Variable:   varName,
		Longitude:  make([]float64, np),
		Latitude:   make([]float64, np),
		Values:     sparse.ZerosDense(nt, nz, np),
		Bathymetry: make([]float64, np),
	}
	for p := range points {
		t.Longitude[p] = gridLon[ilon[p]]
		t.Latitude[p] = gridLat[ilat[p]]
	}

	if t.Depth0, err = read1D(f, depthVar, nz); err != nil {
		return nil, err
	}
	if a, ok := f.Attribute(depthVar, "units"); ok {
		t.DepthUnits, _ = a.String()
	}
	if t.Time, err = read1D(f, timeVar, nt); err != nil {
		return nil, err
	}
	if t.TimeAttributes, err = f.Attributes(timeVar); err != nil {
		return nil, err
	}
	if t.Attributes, err = f.Attributes(varName); err != nil {
		return nil, err
	}
	missing := missingValues(t.Attributes)

	log.WithFields(logrus.Fields{"variable": varName, "points": np, "records": nt}).Info("extracting transect")
	for ti := 0; ti < nt; ti++ {
		rec, err := f.ReadRecord(varName, ti)
		if err != nil {
			return nil, fmt.Errorf("nemodriver: extracting transect: %w", err)
		}
		for k := 0; k < nz; k++ {
			for p := 0; p < np; p++ {
				v := rec.Get(k, ilat[p], ilon[p])
				if isMissing(v, missing) {
					v = math.NaN()
				}
				t.Values.Set(v, ti, k, p)
			}
		}
		log.Debugf("read record %d/%d", ti+1, nt)
	}

	bathy, err := domainBathymetry(domainfile, gridLat, gridLon)
	if err != nil {
		return nil, err
	}
	for p := range points {
		t.Bathymetry[p] = bathy(ilat[p], ilon[p])
	}
	t.computeDepth()
	return t, nil
}

// gridAxes reads the curvilinear grid of f and collapses it to one
// latitude per row and one longitude per column.
func gridAxes(f *ncread.File, ny, nx int) (lat, lon []float64, err error) {
	navLat, err := readHorizontal(f, navLatVar)
	if err != nil {
		return nil, nil, err
	}
	navLon, err := readHorizontal(f, navLonVar)
	if err != nil {
		return nil, nil, err
	}
	for _, a := range []*sparse.DenseArray{navLat, navLon} {
		if a.Shape[0] != ny || a.Shape[1] != nx {
			return nil, nil, fmt.Errorf("nemodriver: %s: grid shape %v does not match field shape [%d %d]",
				f.Path(), a.Shape, ny, nx)
		}
	}
	return collapseMax(navLat, 1), collapseMax(navLon, 0), nil
}

// domainBathymetry returns the sea floor depth for cell (j, i) of the
// grid with axes gridLat and gridLon.
func domainBathymetry(domainfile string, gridLat, gridLon []float64) (func(j, i int) float64, error) {
	d, err := ncread.Open(domainfile)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: reading domain: %w", err)
	}
	defer d.Close()

	if !d.HasVariable(bathymetryVar) {
		return nil, fmt.Errorf("nemodriver: domain %s has no variable %q", domainfile, bathymetryVar)
	}
	bathy, err := readHorizontal(d, bathymetryVar)
	if err != nil {
		return nil, err
	}
	domLat, domLon, err := gridAxes(d, bathy.Shape[0], bathy.Shape[1])
	if err != nil {
		return nil, err
	}

	mapLat, dist := nearestIndices(domLat, gridLat)
	if !withinTolerance(dist) {
		return nil, fmt.Errorf("nemodriver: could not map %s of the output grid onto domain %s", navLatVar, domainfile)
	}
	mapLon, dist := nearestIndices(domLon, gridLon)
	if !withinTolerance(dist) {
		return nil, fmt.Errorf("nemodriver: could not map %s of the output grid onto domain %s", navLonVar, domainfile)
	}
	return func(j, i int) float64 { return bathy.Get(mapLat[j], mapLon[i]) }, nil
}

// computeDepth derives cell interfaces from the nominal level depths,
// cutting them off at the sea floor.
func (t *Transect) computeDepth() {
	nt, nz, np := t.Values.Shape[0], t.Values.Shape[1], t.Values.Shape[2]

	z0 := make([]float64, nz+1)
	if nz > 0 {
		z0[1] = 2 * t.Depth0[0]
	}
	for i := 1; i < nz; i++ {
		z0[i+1] = 2*t.Depth0[i] - z0[i]
	}

	t.Depth = sparse.ZerosDense(nz, np)
	t.DepthBounds = sparse.ZerosDense(nz, np, 2)
	for p := 0; p < np; p++ {
		for k := 0; k < nz; k++ {
			top := math.Min(t.Bathymetry[p], z0[k])
			bottom := math.Min(t.Bathymetry[p], z0[k+1])
			t.DepthBounds.Set(top, k, p, 0)
			t.DepthBounds.Set(bottom, k, p, 1)
			zt := (top + bottom) / 2
			if nt > 0 && math.IsNaN(t.Values.Get(0, k, p)) {
				zt = math.NaN()
			}
			t.Depth.Set(zt, k, p)
		}
	}
}

// WriteFile writes the transect to a new netCDF file at path.
func (t *Transect) WriteFile(path string) error {
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("nemodriver: writing transect: %w", err)
	}
	if err := t.Write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Write writes the transect to w in the netCDF classic format.
func (t *Transect) Write(w *os.File) error {
	nt, nz, np := t.Values.Shape[0], t.Values.Shape[1], t.Values.Shape[2]

	h := cdf.NewHeader([]string{"time", "depth", "bounds", "index"}, []int{0, nz, 2, np})
	h.AddVariable("latitude", []string{"index"}, []float32{0})
	h.AddAttribute("latitude", "standard_name", "latitude")
	h.AddAttribute("latitude", "units", "degree")
	h.AddVariable("longitude", []string{"index"}, []float32{0})
	h.AddAttribute("longitude", "standard_name", "longitude")
	h.AddAttribute("longitude", "units", "degree")

	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "standard_name", "time")
	for _, a := range t.TimeAttributes {
		if a.Name != "units" && a.Name != "calendar" {
			continue
		}
		if s, ok := a.String(); ok {
			h.AddAttribute("time", a.Name, s)
		}
	}

	h.AddVariable("depth0", []string{"depth"}, []float32{0})
	h.AddAttribute("depth0", "standard_name", "depth")
	if t.DepthUnits != "" {
		h.AddAttribute("depth0", "units", t.DepthUnits)
	}

	h.AddVariable(t.Variable, []string{"time", "depth", "index"}, []float32{0})
	for _, a := range t.Attributes {
		if a.Name == "coordinates" {
			continue
		}
		if v, ok := classicAttribute(a); ok {
			h.AddAttribute(t.Variable, a.Name, v)
		}
	}
	h.AddAttribute(t.Variable, "coordinates", "time depth latitude longitude")

	h.AddVariable("depth", []string{"depth", "index"}, []float32{0})
	h.AddAttribute("depth", "standard_name", "depth")
	if t.DepthUnits != "" {
		h.AddAttribute("depth", "units", t.DepthUnits)
	}
	h.AddAttribute("depth", "bounds", "depth_bounds")
	h.AddVariable("depth_bounds", []string{"depth", "index", "bounds"}, []float32{0})
	h.AddAttribute("depth_bounds", "long_name", "depth bounds")
	if t.DepthUnits != "" {
		h.AddAttribute("depth_bounds", "units", t.DepthUnits)
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("nemodriver: transect header: %v", errs[0])
	}

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("nemodriver: writing transect: %w", err)
	}

	fill, hasFill := t.fillValue()
	vals := toFloat32(t.Values.Elements)
	if hasFill {
		for i, v := range vals {
			if math.IsNaN(float64(v)) {
				vals[i] = fill
			}
		}
	}
	if len(vals) != nt*nz*np {
		return fmt.Errorf("nemodriver: transect has %d values; want %d", len(vals), nt*nz*np)
	}

	for _, v := range []struct {
		name string
		data interface{}
	}{
		{"latitude", toFloat32(t.Latitude)},
		{"longitude", toFloat32(t.Longitude)},
		{"time", t.Time},
		{"depth0", toFloat32(t.Depth0)},
		{t.Variable, vals},
		{"depth", toFloat32(t.Depth.Elements)},
		{"depth_bounds", toFloat32(t.DepthBounds.Elements)},
	} {
		if err := writeVariable(f, v.name, v.data); err != nil {
			return err
		}
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		return fmt.Errorf("nemodriver: writing transect: %w", err)
	}
	return nil
}

// fillValue returns the _FillValue of the field as written to file.
func (t *Transect) fillValue() (float32, bool) {
	for _, a := range t.Attributes {
		if a.Name != "_FillValue" {
			continue
		}
		if v, ok := a.Float64s(); ok {
			return float32(v[0]), true
		}
	}
	return 0, false
}

func writeVariable(f *cdf.File, name string, data interface{}) error {
	// Writing the last element of a fixed size variable reports io.EOF.
	if _, err := f.Writer(name, nil, nil).Write(data); err != nil && err != io.EOF {
		return fmt.Errorf("nemodriver: writing %s: %w", name, err)
	}
	return nil
}

// readHorizontal reads the last two dimensions of variable name,
// taking the first index of any leading dimensions.
func readHorizontal(f *ncread.File, name string) (*sparse.DenseArray, error) {
	a, err := f.Read(name)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: %w", err)
	}
	n := len(a.Shape)
	if n < 2 {
		return nil, fmt.Errorf("nemodriver: %s: %s has shape %v; want (y, x)", f.Path(), name, a.Shape)
	}
	ny, nx := a.Shape[n-2], a.Shape[n-1]
	if n == 2 {
		return a, nil
	}
	out := sparse.ZerosDense(ny, nx)
	copy(out.Elements, a.Elements[:ny*nx])
	return out, nil
}

// read1D reads one-dimensional variable name, which must have length n.
func read1D(f *ncread.File, name string, n int) ([]float64, error) {
	a, err := f.Read(name)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: %w", err)
	}
	if len(a.Elements) != n {
		return nil, fmt.Errorf("nemodriver: %s: %s has %d values; want %d", f.Path(), name, len(a.Elements), n)
	}
	return a.Elements, nil
}

// collapseMax reduces a (y, x) array to one dimension by taking
// the maximum along axis.
func collapseMax(a *sparse.DenseArray, axis int) []float64 {
	ny, nx := a.Shape[0], a.Shape[1]
	if axis == 1 {
		out := make([]float64, ny)
		for j := range out {
			out[j] = floats.Max(a.Elements[j*nx : (j+1)*nx])
		}
		return out
	}
	out := make([]float64, nx)
	col := make([]float64, ny)
	for i := range out {
		for j := range col {
			col[j] = a.Get(j, i)
		}
		out[i] = floats.Max(col)
	}
	return out
}

// nearestIndices returns for each target the index of the closest
// axis value and its distance. Ties go to the lowest index.
func nearestIndices(axis, targets []float64) (idx []int, dist []float64) {
	idx = make([]int, len(targets))
	dist = make([]float64, len(targets))
	d := make([]float64, len(axis))
	for p, v := range targets {
		for i, a := range axis {
			d[i] = math.Abs(a - v)
		}
		idx[p] = floats.MinIdx(d)
		dist[p] = d[idx[p]]
	}
	return idx, dist
}

func withinTolerance(dist []float64) bool {
	for _, d := range dist {
		if !(d < domainTolerance) {
			return false
		}
	}
	return true
}

// missingValues returns the _FillValue and missing_value attribute values.
func missingValues(attrs []ncread.Attribute) []float32 {
	var out []float32
	for _, a := range attrs {
		if a.Name != "_FillValue" && a.Name != "missing_value" {
			continue
		}
		if v, ok := a.Float64s(); ok {
			out = append(out, toFloat32(v)...)
		}
	}
	return out
}

func isMissing(v float64, missing []float32) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return true
	}
	for _, m := range missing {
		if float32(v) == m {
			return true
		}
	}
	return false
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// classicAttribute converts an attribute value to a type the classic
// format can store. Fill values are stored as float to match the field.
func classicAttribute(a ncread.Attribute) (interface{}, bool) {
	if s, ok := a.String(); ok {
		return s, true
	}
	vals, ok := a.Float64s()
	if !ok {
		return nil, false
	}
	if a.Name == "_FillValue" || a.Name == "missing_value" || a.Name == "valid_min" ||
		a.Name == "valid_max" || a.Name == "valid_range" {
		return toFloat32(vals), true
	}
	switch elemKind(a.Value) {
	case reflect.Float32:
		return toFloat32(vals), true
	case reflect.Int8:
		out := make([]uint8, len(vals))
		for i, v := range vals {
			out[i] = uint8(int8(v))
		}
		return out, true
	case reflect.Int16, reflect.Uint8:
		out := make([]int16, len(vals))
		for i, v := range vals {
			out[i] = int16(v)
		}
		return out, true
	case reflect.Int32, reflect.Uint16:
		out := make([]int32, len(vals))
		for i, v := range vals {
			out[i] = int32(v)
		}
		return out, true
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		out := make([]int32, len(vals))
		for i, v := range vals {
			if v < math.MinInt32 || v > math.MaxInt32 {
				return vals, true
			}
			out[i] = int32(v)
		}
		return out, true
	}
	return vals, true
}

func elemKind(v interface{}) reflect.Kind {
	t := reflect.TypeOf(v)
	for t != nil && (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) {
		t = t.Elem()
	}
	if t == nil {
		return reflect.Invalid
	}
	return t.Kind()
}

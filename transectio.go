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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
)

// ReadTransectPoints reads transect points from file. Files ending in
// .json or .geojson hold a GeoJSON LineString, MultiPoint or Point;
// any other file holds one "lon lat" pair per line, where blank lines
// and text after '#' are ignored.
func ReadTransectPoints(file string) ([]geom.Point, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json", ".geojson":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("nemodriver: reading transect: %w", err)
		}
		return parseTransectGeoJSON(b, file)
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: reading transect: %w", err)
	}
	defer f.Close()
	return parseTransectText(f, file)
}

func parseTransectGeoJSON(b []byte, name string) ([]geom.Point, error) {
	g, err := geojson.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("nemodriver: reading transect %s: %w", name, err)
	}
	var points []geom.Point
	switch t := g.(type) {
	case geom.LineString:
		points = []geom.Point(t)
	case geom.MultiPoint:
		points = []geom.Point(t)
	case geom.Point:
		points = []geom.Point{t}
	default:
		return nil, fmt.Errorf("nemodriver: reading transect %s: unsupported geometry type %T", name, g)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("nemodriver: transect %s has no points", name)
	}
	return points, nil
}

func parseTransectText(r io.Reader, name string) ([]geom.Point, error) {
	var points []geom.Point
	s := bufio.NewScanner(r)
	for line := 1; s.Scan(); line++ {
		text := s.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(strings.ReplaceAll(text, ",", " "))
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("nemodriver: %s:%d: want 2 columns (lon lat), have %d", name, line, len(fields))
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("nemodriver: %s:%d: %w", name, line, err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("nemodriver: %s:%d: %w", name, line, err)
		}
		points = append(points, geom.Point{X: lon, Y: lat})
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("nemodriver: reading transect %s: %w", name, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("nemodriver: transect %s has no points", name)
	}
	return points, nil
}

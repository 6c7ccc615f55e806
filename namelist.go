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
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Default namelist file names and the keys read from them.
const (
	DefaultNamelistRef = "namelist_ref"
	DefaultNamelistCfg = "namelist_cfg"

	TimestepKey     = "rn_rdt"
	EndIterationKey = "nn_itend"
)

var (
	// ErrKeyNotFound is returned when a namelist does not set the requested key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrEmptyFile is returned when a namelist file has no content.
	ErrEmptyFile = errors.New("file is empty")
)

// ParseNamelist returns the raw value assigned to key in the
// Fortran namelist file. When the key is assigned more than once
// the last assignment wins.
func ParseNamelist(file, key string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("nemodriver: reading namelist: %w", err)
	}
	defer f.Close()
	return parseNamelist(f, file, key)
}

func parseNamelist(r io.Reader, name, key string) (string, error) {
	s := bufio.NewScanner(r)
	var value string
	var found, nonEmpty bool
	for s.Scan() {
		nonEmpty = true
		if v, ok := namelistValue(s.Text(), key); ok {
			value, found = v, true
		}
	}
	if err := s.Err(); err != nil {
		return "", fmt.Errorf("nemodriver: reading namelist %s: %w", name, err)
	}
	if !nonEmpty {
		return "", fmt.Errorf("nemodriver: namelist %s: %w", name, ErrEmptyFile)
	}
	if !found {
		return "", fmt.Errorf("nemodriver: %s in namelist %s: %w", key, name, ErrKeyNotFound)
	}
	return value, nil
}

// namelistValue returns the value assigned to key on line, if any.
func namelistValue(line, key string) (string, bool) {
	if i := strings.IndexByte(line, '!'); i >= 0 {
		line = line[:i]
	}
	eq := strings.IndexByte(line, '=')
	if eq < 0 || strings.TrimSpace(line[:eq]) != key {
		return "", false
	}
	fields := strings.Fields(line[eq+1:])
	if len(fields) == 0 {
		return "", false
	}
	v := strings.TrimSuffix(fields[0], ",")
	if v == "" {
		return "", false
	}
	return v, true
}

// ParseNamelistWithCfg looks for key in the cfg namelist and falls
// back to the ref namelist when cfg is empty or does not set it.
func ParseNamelistWithCfg(ref, cfg, key string) (string, error) {
	v, err := ParseNamelist(cfg, key)
	if errors.Is(err, ErrKeyNotFound) || errors.Is(err, ErrEmptyFile) {
		return ParseNamelist(ref, key)
	}
	return v, err
}

// ParseNamelistFloat returns the real value of key. Fortran double
// precision exponents (1.5d3) are accepted.
func ParseNamelistFloat(ref, cfg, key string) (float64, error) {
	v, err := ParseNamelistWithCfg(ref, cfg, key)
	if err != nil {
		return 0, err
	}
	f, err := parseFortranReal(v)
	if err != nil {
		return 0, fmt.Errorf("nemodriver: namelist key %s: %w", key, err)
	}
	return f, nil
}

// ParseNamelistInt returns the integer value of key.
func ParseNamelistInt(ref, cfg, key string) (int, error) {
	v, err := ParseNamelistWithCfg(ref, cfg, key)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("nemodriver: namelist key %s: %w", key, err)
	}
	return i, nil
}

// ParseTimestep returns the model time step in seconds.
func ParseTimestep(ref, cfg string) (float64, error) {
	return ParseNamelistFloat(ref, cfg, TimestepKey)
}

// ParseTotalIterCount returns the index of the last model iteration.
func ParseTotalIterCount(ref, cfg string) (int, error) {
	return ParseNamelistInt(ref, cfg, EndIterationKey)
}

func parseFortranReal(s string) (float64, error) {
	s = strings.NewReplacer("d", "e", "D", "e").Replace(s)
	return strconv.ParseFloat(s, 64)
}

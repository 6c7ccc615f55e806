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
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/nemodriver/nemodriver/internal/ncread"
	"github.com/sirupsen/logrus"
)

// ErrMismatch is returned when a compressed file does not have the
// contents of its source.
var ErrMismatch = errors.New("files differ")

// Compression defaults.
const (
	DefaultCompressionOptions = "-d1"
	DefaultNCCopy             = "nccopy"
)

// CompressOptions control CompressFile.
type CompressOptions struct {
	// Options are the nccopy flags, separated by white space.
	Options string

	// NCCopy is the nccopy executable.
	NCCopy string

	// DeleteSource removes each source file once its compressed
	// copy has been verified.
	DeleteSource bool

	Log logrus.FieldLogger
}

func (o CompressOptions) args() []string {
	if strings.TrimSpace(o.Options) == "" {
		return []string{DefaultCompressionOptions}
	}
	return strings.Fields(o.Options)
}

func (o CompressOptions) nccopy() string {
	if o.NCCopy == "" {
		return DefaultNCCopy
	}
	return o.NCCopy
}

// CreateDirectory creates directory path and any missing parents.
// It is not an error for the directory to exist already.
func CreateDirectory(path string) error {
	fi, err := os.Stat(path)
	switch {
	case err == nil && fi.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("nemodriver: %s exists and is not a directory", path)
	case !os.IsNotExist(err):
		return fmt.Errorf("nemodriver: creating directory: %w", err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("nemodriver: creating directory: %w", err)
	}
	return nil
}

// CompressFile writes a compressed copy of src into outDir with nccopy
// and checks that the copy holds the same variables and attributes.
func CompressFile(src, outDir string, o CompressOptions) error {
	log := logger(o.Log)
	if err := CreateDirectory(outDir); err != nil {
		return err
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("nemodriver: compressing: %w", err)
	}
	if !srcInfo.Mode().IsRegular() {
		return fmt.Errorf("nemodriver: compressing %s: not a regular file", src)
	}
	dst := filepath.Join(outDir, filepath.Base(src))
	if same, err := samePath(src, dst); err != nil {
		return err
	} else if same {
		return fmt.Errorf("nemodriver: compressing %s: output would overwrite the input", src)
	}

	cmd := exec.Command(o.nccopy(), append(o.args(), src, dst)...)
	log.WithField("command", strings.Join(cmd.Args, " ")).Info("executing")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("nemodriver: %s: %w\n%s", strings.Join(cmd.Args, " "), err, out)
	}

	log.Debugf("comparing files: %s %s", src, dst)
	if err := CompareFiles(src, dst); err != nil {
		return err
	}
	log.Debug("files match")

	if dstInfo, err := os.Stat(dst); err == nil && srcInfo.Size() > 0 {
		log.WithFields(logrus.Fields{
			"file":  dst,
			"ratio": fmt.Sprintf("%.3f", float64(dstInfo.Size())/float64(srcInfo.Size())),
		}).Info("compressed")
	}

	if o.DeleteSource {
		log.WithField("file", src).Info("removing")
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("nemodriver: removing compressed source: %w", err)
		}
	}
	return nil
}

// ProcessFiles compresses files into outDir one after another,
// stopping at the first failure.
func ProcessFiles(files []string, outDir string, o CompressOptions) error {
	for _, f := range files {
		if err := CompressFile(f, outDir, o); err != nil {
			return err
		}
	}
	return nil
}

// CompareFiles checks that files a and b contain the same variables
// with the same shapes and the same global attribute names.
func CompareFiles(a, b string) error {
	fa, err := ncread.Open(a)
	if err != nil {
		return fmt.Errorf("nemodriver: comparing: %w", err)
	}
	defer fa.Close()
	fb, err := ncread.Open(b)
	if err != nil {
		return fmt.Errorf("nemodriver: comparing: %w", err)
	}
	defer fb.Close()

	mismatch := func(format string, args ...interface{}) error {
		return fmt.Errorf("nemodriver: %s and %s: %s: %w", a, b, fmt.Sprintf(format, args...), ErrMismatch)
	}

	va, vb := fa.Variables(), fb.Variables()
	if !reflect.DeepEqual(va, vb) {
		return mismatch("variables %v != %v", va, vb)
	}
	for _, v := range va {
		sa, err := fa.Shape(v)
		if err != nil {
			return err
		}
		sb, err := fb.Shape(v)
		if err != nil {
			return err
		}
		if !reflect.DeepEqual(sa, sb) {
			return mismatch("variable %s shape %v != %v", v, sa, sb)
		}
	}

	ga, gb := attributeNames(fa.GlobalAttributes()), attributeNames(fb.GlobalAttributes())
	if !reflect.DeepEqual(ga, gb) {
		return mismatch("global attributes %v != %v", ga, gb)
	}
	return nil
}

func attributeNames(attrs []ncread.Attribute) []string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}
	sort.Strings(names)
	return names
}

func samePath(a, b string) (bool, error) {
	aa, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("nemodriver: %w", err)
	}
	bb, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("nemodriver: %w", err)
	}
	return aa == bb, nil
}

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

// Command nemodriver is a command-line interface to the NEMO monthly
// driver utilities.
package main

import (
	"fmt"
	"os"

	"github.com/nemodriver/nemodriver/nemoutil"
)

func main() {
	cfg := nemoutil.InitializeConfig()
	if err := cfg.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

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

// Package nemoutil contains the nemodriver command-line interface.
package nemoutil

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jonboulle/clockwork"
	"github.com/lnashier/viper"
	"github.com/nemodriver/nemodriver"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information and the commands that use it.
type Cfg struct {
	*viper.Viper

	// Root is the main command.
	Root *cobra.Command

	// Clock supplies the current time to the duration command.
	Clock clockwork.Clock

	log     *logrus.Logger
	options []option
}

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// counter is the default value type of options that count how many
// times they are given.
type counter int

// InitializeConfig creates the command tree and a configuration bound
// to its flags.
func InitializeConfig() *Cfg {
	cfg := &Cfg{
		Viper: viper.New(),
		Clock: clockwork.NewRealClock(),
		log:   logrus.New(),
	}
	cfg.SetEnvPrefix("NEMODRIVER")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	cfg.AutomaticEnv()

	cfg.Root = &cobra.Command{
		Use:   "nemodriver",
		Short: "Tools for driving NEMO ocean model runs.",
		Long: `nemodriver collects the utilities used by the NEMO monthly driver:
compressing model output, computing run lengths from namelists, reporting the
progress of a run, linking restart files into the next run directory and
extracting vertical transects from model output.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'NEMODRIVER_var' where 'var'
is the name of the variable to be set, with dashes replaced by underscores.
File and directory names may contain environment variables.`,
		DisableAutoGenTag: true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.setConfig(); err != nil {
				return err
			}
			cfg.log = newLogger(cmd.ErrOrStderr(), cfg.GetInt("verbosity"))
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  "version prints the version number of this version of nemodriver.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nemodriver v%s\n", nemodriver.Version)
		},
		DisableAutoGenTag: true,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the configuration",
		Long: `config prints the configuration that results from combining the
configuration file, environment variables and command-line flags, in TOML format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := make(map[string]interface{})
			for _, o := range cfg.options {
				if v := cfg.Get(o.name); v != nil {
					settings[o.name] = v
				}
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(settings)
		},
		DisableAutoGenTag: true,
	}

	compressCmd := &cobra.Command{
		Use:   "compress ODIR FILE...",
		Short: "Compress netCDF files",
		Long: `compress writes a compressed copy of each FILE into directory ODIR
using nccopy, and checks that each copy contains the same variables, variable
shapes and global attributes as its source. ODIR is created if necessary.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := cfg.compressOptions()
			if err != nil {
				return err
			}
			return nemodriver.ProcessFiles(expandStringSlice(args[1:]), os.ExpandEnv(args[0]), o)
		},
		DisableAutoGenTag: true,
	}

	ntimestepCmd := &cobra.Command{
		Use:   "ntimestep START END",
		Short: "Compute the number of time steps between two dates",
		Long: `ntimestep prints the number of model time steps needed to run from
START to END. Dates may be given in most common formats, for example
2016-01-01, 20160101 or 2016-01-01T00:00:00Z. Unless --timestep is given,
the time step is read from the namelists.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := nemodriver.ParseDate(args[0])
			if err != nil {
				return err
			}
			end, err := nemodriver.ParseDate(args[1])
			if err != nil {
				return err
			}
			dt := cfg.GetFloat64("timestep")
			if dt == 0 {
				dt, err = nemodriver.ParseTimestep(
					os.ExpandEnv(cfg.GetString("namelist-ref")),
					os.ExpandEnv(cfg.GetString("namelist-cfg")))
				if err != nil {
					return err
				}
			}
			n, err := nemodriver.ComputeNTimesteps(start, end, dt)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
		DisableAutoGenTag: true,
	}

	durationCmd := &cobra.Command{
		Use:   "duration",
		Short: "Report the progress of a model run",
		Long: `duration reports the status, speed and expected remaining wall clock
time of the NEMO run in --rundir, from its layout.dat, run.stat and namelist
files. Relative namelist paths are taken relative to the run directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := cfg.runFiles()
			s, err := nemodriver.ReadRunStatus(files, cfg.Clock, cfg.GetDuration("stall-threshold"))
			if err != nil {
				return err
			}
			if err := s.WriteReport(cmd.OutOrStdout()); err != nil {
				return err
			}
			if f := cfg.GetString("metrics-file"); f != "" {
				if err := s.WriteMetrics(os.ExpandEnv(f)); err != nil {
					return err
				}
				cfg.log.WithField("file", f).Info("wrote metrics")
			}
			return nil
		},
		DisableAutoGenTag: true,
	}

	linkCmd := &cobra.Command{
		Use:   "link-restarts INPUT_DIR OUTPUT_DIR INPUT_NAME OUTPUT_NAME",
		Short: "Link restart files into a run directory",
		Long: `link-restarts finds the latest set of per-processor restart files in
INPUT_DIR whose names contain INPUT_NAME and creates relative symbolic links
to them in OUTPUT_DIR named OUTPUT_NAME_<processor>.nc.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			args = expandStringSlice(args)
			_, err := nemodriver.SymlinkRestartFiles(args[0], args[2], args[1], args[3], nemodriver.LinkOptions{
				Force:  cfg.GetBool("force"),
				DryRun: cfg.GetBool("dry-run"),
				Out:    cmd.OutOrStdout(),
				Log:    cfg.log,
			})
			return err
		},
		DisableAutoGenTag: true,
	}

	transectCmd := &cobra.Command{
		Use:   "transect INFILE DOMAINFILE VAR TRANSECT_FILE OUTFILE",
		Short: "Extract a vertical transect from model output",
		Long: `transect samples the 4-D variable VAR of NEMO output file INFILE at the
grid points nearest to the points listed in TRANSECT_FILE, and writes the
resulting section with level depths cut off at the sea floor (read from
domain file DOMAINFILE) to netCDF file OUTFILE.

TRANSECT_FILE holds one "lon lat" pair per line, or is a GeoJSON file
(.json or .geojson) containing a LineString, MultiPoint or Point.`,
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			args = expandStringSlice(args)
			points, err := nemodriver.ReadTransectPoints(args[3])
			if err != nil {
				return err
			}
			t, err := nemodriver.ExtractTransect(args[0], args[1], args[2], points, cfg.log)
			if err != nil {
				return err
			}
			if err := t.WriteFile(args[4]); err != nil {
				return err
			}
			cfg.log.WithField("file", args[4]).Info("wrote transect")
			if p := cfg.GetString("plot"); p != "" {
				return t.Plot(os.ExpandEnv(p), cfg.GetInt("plot-record"))
			}
			return nil
		},
		DisableAutoGenTag: true,
	}

	cfg.Root.AddCommand(versionCmd, configCmd, compressCmd, ntimestepCmd, durationCmd, linkCmd, transectCmd)

	// Options are the configuration options available to nemodriver.
	cfg.options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "verbosity",
			usage: `
              verbosity increases the amount of log output. Give it once
              for progress information and twice for debugging output.`,
			shorthand:  "v",
			defaultVal: counter(0),
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "delete-source",
			usage: `
              delete-source specifies whether to delete each source file
              after its compressed copy has been verified.`,
			shorthand:  "D",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{compressCmd.Flags()},
		},
		{
			name: "compression-options",
			usage: `
              compression-options specifies the options passed to nccopy.
              In a configuration file it may also be given as a list.`,
			shorthand:  "s",
			defaultVal: nemodriver.DefaultCompressionOptions,
			flagsets:   []*pflag.FlagSet{compressCmd.Flags()},
		},
		{
			name: "nccopy",
			usage: `
              nccopy specifies the nccopy executable.`,
			defaultVal: nemodriver.DefaultNCCopy,
			flagsets:   []*pflag.FlagSet{compressCmd.Flags()},
		},
		{
			name: "timestep",
			usage: `
              timestep specifies the model time step in seconds. If it is
              zero, the time step (rn_rdt) is read from the namelists.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{ntimestepCmd.Flags()},
		},
		{
			name: "namelist-ref",
			usage: `
              namelist-ref specifies the reference namelist file.`,
			defaultVal: nemodriver.DefaultNamelistRef,
			flagsets:   []*pflag.FlagSet{ntimestepCmd.Flags(), durationCmd.Flags()},
		},
		{
			name: "namelist-cfg",
			usage: `
              namelist-cfg specifies the configuration namelist file, whose
              settings take precedence over the reference namelist.`,
			defaultVal: nemodriver.DefaultNamelistCfg,
			flagsets:   []*pflag.FlagSet{ntimestepCmd.Flags(), durationCmd.Flags()},
		},
		{
			name: "rundir",
			usage: `
              rundir specifies the run directory to inspect.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{durationCmd.Flags()},
		},
		{
			name: "stall-threshold",
			usage: `
              stall-threshold specifies how long run.stat may go without
              being updated before the run is reported as stopped.`,
			defaultVal: nemodriver.DefaultStallThreshold,
			flagsets:   []*pflag.FlagSet{durationCmd.Flags()},
		},
		{
			name: "metrics-file",
			usage: `
              metrics-file specifies a file to write the run status to in
              the Prometheus text format, for the node exporter textfile
              collector. Nothing is written if it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{durationCmd.Flags()},
		},
		{
			name: "force",
			usage: `
              force specifies whether to replace existing files at the
              link paths.`,
			shorthand:  "f",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{linkCmd.Flags()},
		},
		{
			name: "dry-run",
			usage: `
              dry-run specifies whether to only print the links that
              would be created.`,
			shorthand:  "n",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{linkCmd.Flags()},
		},
		{
			name: "plot",
			usage: `
              plot specifies an image file (.png, .svg, .pdf, ...) to draw
              the transect to. Nothing is drawn if it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{transectCmd.Flags()},
		},
		{
			name: "plot-record",
			usage: `
              plot-record specifies the time record to draw.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{transectCmd.Flags()},
		},
	}
	cfg.bindOptions()
	return cfg
}

// bindOptions creates the flags for all options and binds them to
// the configuration.
func (cfg *Cfg) bindOptions() {
	for _, option := range cfg.options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case counter:
				set.CountP(option.name, option.shorthand, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case time.Duration:
				set.DurationP(option.name, option.shorthand, v, option.usage)
			default:
				panic(fmt.Errorf("invalid argument type %T for option %s", v, option.name))
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

// setConfig reads the configuration file, if one was given.
func (cfg *Cfg) setConfig() error {
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("nemodriver: problem reading configuration file: %v", err)
		}
	}
	return nil
}

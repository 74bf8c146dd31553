package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Env holds the process surroundings commands run in.
type Env struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
	// Viper is the configuration registry; a fresh one is used when nil.
	Viper *viper.Viper
	// Now overrides the wall clock.
	Now func() time.Time

	reader *bufio.Reader
}

func (e *Env) defaults() {
	if e.In == nil {
		e.In = os.Stdin
	}
	if e.Out == nil {
		e.Out = color.Output
	}
	if e.Err == nil {
		e.Err = os.Stderr
	}
	if e.Viper == nil {
		e.Viper = viper.New()
	}
	if e.Now == nil {
		e.Now = time.Now
	}
}

// prompt asks a yes/no question. Anything but y or yes is a no.
func (e *Env) prompt(question string) (bool, error) {
	if e.reader == nil {
		e.reader = bufio.NewReader(e.In)
	}
	_, _ = fmt.Fprintf(e.Out, "%s [y/N]: ", question)
	line, err := e.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "e", "evet":
		return true, nil
	}
	return false, nil
}

// RootOptions are the persistent flags shared by every command.
type RootOptions struct {
	ConfigFile string
	LogLevel   string
	Trace      bool
}

func addRootArgs(cmd *cobra.Command, o *RootOptions) {
	cmd.PersistentFlags().StringVar(&o.ConfigFile, "config", "",
		"Config file (default .curetrack.yaml in the working or home directory).")
	cmd.PersistentFlags().StringVar(&o.LogLevel, "log-level", "",
		"Log level: debug, info, warn or error. Overrides log.level.")
	cmd.PersistentFlags().BoolVar(&o.Trace, "trace", false,
		"Write one JSON line per lifecycle operation to stderr.")
}

// OutputOptions selects machine readable output.
type OutputOptions struct {
	JSON bool
	out  io.Writer
}

func addOutputArg(cmd *cobra.Command, o *OutputOptions) {
	cmd.PersistentFlags().BoolVar(&o.JSON, "json", false,
		"Output as JSON.")
}

// HandleError prints err as a JSON object in JSON mode and swallows it so
// scripts get a parseable answer; otherwise err is returned unchanged.
func (o *OutputOptions) HandleError(err error) error {
	if o.JSON && err != nil {
		b, merr := json.Marshal(map[string]string{"error": err.Error()})
		if merr != nil {
			return merr
		}
		_, _ = fmt.Fprintln(o.out, string(b))
		return nil
	}
	return err
}

// YesOptions skips interactive confirmation.
type YesOptions struct {
	Yes bool
}

func addYesArg(cmd *cobra.Command, o *YesOptions) {
	cmd.Flags().BoolVarP(&o.Yes, "yes", "y", false,
		"Answer yes to every confirmation.")
}

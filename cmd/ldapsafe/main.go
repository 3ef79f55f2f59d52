package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/franchb/ldapsafe"
	"github.com/franchb/ldapsafe/internal/toml"
	"github.com/franchb/ldapsafe/internal/version"
	"github.com/franchb/ldapsafe/pkg/escape"
)

func main() {
	configFile := pflag.StringP("config", "c", "ldapsafe.cfg", "Config file")
	debug := pflag.Bool("debug", false, "Enable debug logging")
	showVersion := pflag.Bool("version", false, "Show version and exit")
	escapeDN := pflag.String("escape-dn", "", "Print the escaped distinguished name value and exit")
	escapeFilter := pflag.String("escape-filter", "", "Print the filter with escaped assertion values and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println("ldapsafe", version.Version)
		os.Exit(0)
	}

	oneShot := false

	if pflag.CommandLine.Changed("escape-dn") {
		fmt.Println(escape.DN(*escapeDN))
		oneShot = true
	}

	if pflag.CommandLine.Changed("escape-filter") {
		fmt.Println(escape.FilterValues(*escapeFilter))
		oneShot = true
	}

	if oneShot {
		os.Exit(0)
	}

	cfg, err := toml.LoadFile(*configFile)
	if err != nil {
		fmt.Println("Configuration file error")
		fmt.Println(err)
		os.Exit(1)
	}

	if *debug {
		cfg.Debug = true
	}

	if err := ldapsafe.Run(context.Background(), cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

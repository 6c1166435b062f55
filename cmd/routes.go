package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pagemill/internal/module"
	"github.com/conneroisu/pagemill/internal/urlmap"
)

var routesCmd = &cobra.Command{
	Use:     "routes",
	Aliases: []string{"r"},
	Short:   "List the URL map",
	Long: `Scan the pages root and print every URL it serves. Static pages are
listed once per alias; collections are listed by base URL.

Examples:
  pagemill routes            # Table
  pagemill routes -o json    # JSON
  pagemill routes -o yaml    # YAML`,
	RunE: runRoutes,
}

// outputFormat is a pflag.Value accepting table, json or yaml.
type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

var _ pflag.Value = (*outputFormat)(nil)

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Set(v string) error {
	switch outputFormat(strings.ToLower(v)) {
	case formatTable, formatJSON, formatYAML:
		*f = outputFormat(strings.ToLower(v))
		return nil
	default:
		return fmt.Errorf("invalid output format %q, must be one of: table, json, yaml", v)
	}
}

func (f *outputFormat) Type() string { return "format" }

var routesFormat = formatTable

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().VarP(&routesFormat, "output", "o", "Output format (table|json|yaml)")
}

func runRoutes(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSite(cmd.Context(), cfg, module.ModeExport, newLogger(cfg), nil)
	if err != nil {
		return err
	}
	return printRoutes(cmd.OutOrStdout(), s.store.Load().Routes(), routesFormat)
}

func printRoutes(w io.Writer, routes []urlmap.Route, format outputFormat) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(routes)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(routes); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "URL\tKIND\tFILE")
		for _, r := range routes {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.URL, r.Kind, r.File)
		}
		return tw.Flush()
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"extblock/pkg/registry"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List fixed and custom extensions",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "text", "Output format (text, json, yaml)")
	rootCmd.AddCommand(listCmd)
}

// listEntry is one extension as printed by list.
type listEntry struct {
	Extension string    `json:"extension" yaml:"extension"`
	Fixed     bool      `json:"fixed" yaml:"fixed"`
	Active    bool      `json:"active" yaml:"active"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}

type listDocument struct {
	Fixed          []listEntry `json:"fixedExtensions" yaml:"fixed"`
	Custom         []listEntry `json:"customExtensions" yaml:"custom"`
	CustomCount    int         `json:"customCount" yaml:"custom_count"`
	MaxCustomCount int         `json:"maxCustomCount" yaml:"max_custom_count"`
}

func runList(cmd *cobra.Command, _ []string) error {
	switch listOutput {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (must be one of: text, json, yaml)", listOutput)
	}

	env, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer env.Close()

	listing, err := env.reg.List(cmd.Context())
	if err != nil {
		return err
	}
	doc := newListDocument(listing)

	out := cmd.OutOrStdout()
	switch listOutput {
	case "json":
		return printListJSON(out, doc)
	case "yaml":
		return printListYAML(out, doc)
	default:
		return printListTable(out, doc)
	}
}

func newListDocument(l registry.Listing) listDocument {
	entries := func(records []registry.Record) []listEntry {
		out := make([]listEntry, 0, len(records))
		for _, rec := range records {
			out = append(out, listEntry{
				Extension: rec.Extension,
				Fixed:     rec.Fixed,
				Active:    rec.Active,
				CreatedAt: rec.CreatedAt,
			})
		}
		return out
	}
	return listDocument{
		Fixed:          entries(l.Fixed),
		Custom:         entries(l.Custom),
		CustomCount:    l.CustomCount,
		MaxCustomCount: l.MaxCustomCount,
	}
}

func printListTable(out io.Writer, doc listDocument) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "EXTENSION\tKIND\tACTIVE")
	for _, e := range doc.Fixed {
		fmt.Fprintf(w, "%s\tfixed\t%t\n", e.Extension, e.Active)
	}
	for _, e := range doc.Custom {
		fmt.Fprintf(w, "%s\tcustom\t%t\n", e.Extension, e.Active)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\ncustom: %d/%d\n", doc.CustomCount, doc.MaxCustomCount)
	return err
}

func printListJSON(out io.Writer, doc listDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func printListYAML(out io.Writer, doc listDocument) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

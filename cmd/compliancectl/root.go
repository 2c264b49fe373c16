package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/compliance/internal/compliance"
	"github.com/matthewbaird/compliance/pkg/client"
)

var (
	Version = "dev"
	Commit  = "none"
)

type options struct {
	catalogFile string

	server  string
	tenant  string
	actor   string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "compliancectl",
		Short: "Work with building compliance data",
		Long: `compliancectl checks record data against field templates and computes
building compliance scores from check histories.

The remote subcommands talk to a running compliance service.`,
		Version:      fmt.Sprintf("%s (commit: %s)", Version, Commit),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.catalogFile, "catalog", "", "CUE file replacing the built-in check catalog")

	root.AddCommand(
		newValidateCmd(opts),
		newSummarizeCmd(opts),
		newCatalogCmd(opts),
		newRemoteCmd(opts),
	)
	return root
}

func (o *options) catalog() (compliance.Catalog, error) {
	if o.catalogFile == "" {
		return compliance.DefaultCatalog(), nil
	}
	src, err := os.ReadFile(o.catalogFile)
	if err != nil {
		return compliance.Catalog{}, fmt.Errorf("reading catalog: %w", err)
	}
	return compliance.LoadCatalog(src)
}

func (o *options) client() *client.Client {
	return client.New(client.Config{
		BaseURL:    o.server,
		TenantID:   o.tenant,
		Actor:      o.actor,
		Timeout:    o.timeout,
		RetryCount: 3,
	})
}

// readJSON decodes the file at path into v. A path of "-" reads stdin.
func readJSON(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

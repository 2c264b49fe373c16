package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/compliance/internal/template"
	"github.com/matthewbaird/compliance/pkg/client"
)

func newRemoteCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Query a running compliance service",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if opts.tenant == "" {
				return errors.New("--tenant is required")
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "service base URL")
	cmd.PersistentFlags().StringVar(&opts.tenant, "tenant", "", "tenant ID")
	cmd.PersistentFlags().StringVar(&opts.actor, "actor", "compliancectl", "actor recorded on writes")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "summary <building-id>",
			Short: "Show a building's compliance summary",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sum, err := opts.client().Summary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, sum)
			},
		},
		&cobra.Command{
			Use:   "overview",
			Short: "Show every building's compliance percentage",
			RunE: func(cmd *cobra.Command, _ []string) error {
				entries, err := opts.client().Overview(cmd.Context())
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%-36s %4d%%  %-8s %s\n", e.BuildingID, e.Percentage, e.Source, e.BuildingName)
				}
				return nil
			},
		},
		newRemoteValidateCmd(opts),
	)
	return cmd
}

func newRemoteValidateCmd(opts *options) *cobra.Command {
	var dataFile string
	cmd := &cobra.Command{
		Use:   "validate <template-id>",
		Short: "Validate data against a stored template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data template.Data
			if err := readJSON(cmd, dataFile, &data); err != nil {
				return err
			}
			res, err := opts.client().ValidateData(cmd.Context(), args[0], data)
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) {
					return fmt.Errorf("service rejected request: %s (%s)", apiErr.Message, apiErr.Code)
				}
				return err
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if !res.Valid {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataFile, "data", "-", "record data (JSON object), - for stdin")
	return cmd
}

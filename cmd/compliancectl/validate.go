package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/compliance/internal/template"
)

var errInvalid = errors.New("data is not valid")

func newValidateCmd(_ *options) *cobra.Command {
	var templateFile, dataFile string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate record data against a template file",
		Example: `  compliancectl validate --template task.json --data task-data.json
  cat data.json | compliancectl validate --template task.json --data -`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var t template.Template
			if err := readJSON(cmd, templateFile, &t); err != nil {
				return err
			}
			if err := t.Check(); err != nil {
				return fmt.Errorf("template %s: %w", templateFile, err)
			}
			var data template.Data
			if err := readJSON(cmd, dataFile, &data); err != nil {
				return err
			}

			res := template.Validate(t, data)
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if !res.Valid {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&templateFile, "template", "", "template definition (JSON)")
	cmd.Flags().StringVar(&dataFile, "data", "-", "record data (JSON object), - for stdin")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gcload/internal/config"
)

func newJobCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Work with job files",
	}
	cmd.AddCommand(newJobValidateCmd(a))
	return cmd
}

func newJobValidateCmd(_ *app) *cobra.Command {
	var jobPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a job file without contacting the platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := config.LoadJob(jobPath)
			if err != nil {
				return err
			}
			issues := config.ValidateJob(job)
			printIssues(cmd.OutOrStdout(), issues)
			if config.HasErrors(issues) {
				return fmt.Errorf("job %s is invalid", jobPath)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s is valid\n", jobPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "job file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

package main

import (
	"github.com/spf13/cobra"

	"gcload/internal/config"
)

func newRecordsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Create, delete and import template records",
	}
	cmd.AddCommand(newRecordsCreateCmd(a), newRecordsDeleteCmd(a), newImportSheetCmd(a))
	return cmd
}

// loadRecordJob returns the job in jobPath, or fallback when jobPath is
// empty. Non-empty file and template flags override the job file.
func loadRecordJob(jobPath, file, template string, fallback config.Job) (config.Job, error) {
	job := fallback
	if jobPath != "" {
		var err error
		if job, err = config.LoadJob(jobPath); err != nil {
			return config.Job{}, err
		}
	}
	if file != "" {
		job.Source.Path = file
	}
	if template != "" {
		job.Template = template
	}
	return job, nil
}

func newRecordsCreateCmd(a *app) *cobra.Command {
	var (
		file, template, jobPath string
		items                   bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create records from a JSON file",
		Long: `Posts the records in a JSON array (or NDJSON) file to a schema template.
Each element is either {"code": ..., "data": {...}} or a bare data object.
A file holding {"items": [...]} is sent in the same envelope.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := loadRecordJob(jobPath, file, template, config.Job{
				Name:   "create_records",
				Kind:   config.KindRecords,
				Source: config.Source{Path: file},
			})
			if err != nil {
				return err
			}
			if items {
				job.Record.Items = true
			}
			if err := checkJob(cmd, job); err != nil {
				return err
			}

			r, err := a.runner(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := r.CreateRecords(cmd.Context(), job)
			if werr := writeBody(cmd.OutOrStdout(), resp); err == nil {
				err = werr
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "JSON or NDJSON records file")
	f.StringVarP(&template, "template", "t", "", "schema template the records belong to")
	f.StringVar(&jobPath, "job", "", "job file (YAML or JSON) describing record groups")
	f.BoolVar(&items, "items", false, `wrap the batch as {"items": [...]}`)
	return cmd
}

func newRecordsDeleteCmd(a *app) *cobra.Command {
	var (
		ids  []string
		file string
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete records by id",
		Long: `Deletes the records named by --id flags and by --file. A .json file may
hold an array of ids, an array of {"id": ...} objects or a
{"records": [{"id": ...}]} body; any other file lists one id per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := r.DeleteRecords(cmd.Context(), ids, file)
			if werr := writeBody(cmd.OutOrStdout(), resp); err == nil {
				err = werr
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&ids, "id", nil, "record id to delete (repeatable)")
	f.StringVarP(&file, "file", "f", "", "file of record ids")
	return cmd
}

func newImportSheetCmd(a *app) *cobra.Command {
	var file, template, sheet, jobPath string
	cmd := &cobra.Command{
		Use:   "import-sheet",
		Short: "Import spreadsheet rows as grouped records",
		Long: `Reads one sheet of an .xlsx workbook, keeps rows whose measurement_value
exceeds 50, derives adjusted_value (+10%) and creates one
Patient_<patient_id> record per row with User_Information and Metrics
groups. --job replaces the built-in steps and groups.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := loadRecordJob(jobPath, file, template, config.DefaultSheetJob(file, sheet, template))
			if err != nil {
				return err
			}
			if sheet != "" {
				job.Source.Sheet = sheet
			}
			if err := checkJob(cmd, job); err != nil {
				return err
			}

			r, err := a.runner(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := r.ImportSheet(cmd.Context(), job)
			if werr := writeBody(cmd.OutOrStdout(), resp); err == nil {
				err = werr
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "xlsx workbook")
	f.StringVarP(&template, "template", "t", "", `schema template (default "processed_data")`)
	f.StringVar(&sheet, "sheet", "", "sheet to read (default: first sheet)")
	f.StringVar(&jobPath, "job", "", "job file (YAML or JSON)")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Hara602/downloadSentry/internal/config"
	"github.com/Hara602/downloadSentry/internal/quarantine"
)

var (
	listLedger bool
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List quarantined files",
	Long: `List prints the files currently held in the quarantine directory.
With --ledger the audit log is read instead (requires ledger.enabled).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		if listLedger {
			return listRecords(settings, cmd.OutOrStdout(), listLimit)
		}
		return listEntries(settings, cmd.OutOrStdout())
	},
}

func init() {
	listCmd.Flags().BoolVar(&listLedger, "ledger", false, "read the audit ledger instead of the quarantine directory")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum ledger rows")
}

func listEntries(settings *config.Settings, out io.Writer) error {
	entries, err := quarantine.NewStore(settings.QuarantineDir()).List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "quarantine is empty")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tQUARANTINED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", e.Name, e.Size, e.ModTime.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func listRecords(settings *config.Settings, out io.Writer, limit int) error {
	if !settings.Ledger.Enabled {
		return errors.New("ledger is disabled; set ledger.enabled or SENTRY_LEDGER=true")
	}
	ledger, err := quarantine.OpenLedger(settings.LedgerPath())
	if err != nil {
		return err
	}
	defer ledger.Close()

	records, err := ledger.Recent(limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DETECTED\tOUTCOME\tORIGINAL\tQUARANTINE\tTYPE")
	for _, r := range records {
		kind := r.ContentType
		if r.Masquerade {
			kind += " (masquerade)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.DetectedAt.Local().Format(time.DateTime), r.Outcome, r.OriginalPath, r.QuarantinePath, kind)
	}
	return tw.Flush()
}

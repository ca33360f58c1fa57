package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hara602/downloadSentry/internal/alert"
	"github.com/Hara602/downloadSentry/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persistent status notification of the running agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		return printStatus(settings, cmd.OutOrStdout())
	},
}

func printStatus(settings *config.Settings, out io.Writer) error {
	notice, err := alert.ReadStatus(settings.StatusPath())
	if os.IsNotExist(err) {
		// 服务停止时状态通知已被清除
		fmt.Fprintln(out, "not running")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n%s\nupdated %s\n", notice.Title, notice.Body, notice.UpdatedAt.Local().Format(time.DateTime))
	return nil
}

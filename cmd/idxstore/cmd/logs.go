package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/idxstore/internal/errors"
	"github.com/Aman-CERP/idxstore/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		file  string
		lines int
		path  bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the tail of the debug log",
		Long: `Show the last lines of the JSON log written by --debug runs.

The default location is ~/.idxstore/logs/idxstore.log.`,
		Example: `  idxstore logs
  idxstore logs -n 200
  idxstore logs --path`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path {
				fmt.Fprintln(cmd.OutOrStdout(), logging.DefaultLogPath())
				return nil
			}

			logFile, err := logging.FindLogFile(file)
			if err != nil {
				return amerrors.New(amerrors.ErrCodeFileNotFound, err.Error(), err).
					WithSuggestion("Run any command with --debug to start a log")
			}
			f, err := os.Open(logFile)
			if err != nil {
				return amerrors.New(amerrors.ErrCodeFileNotFound, "cannot open log file", err).
					WithDetail("path", logFile)
			}
			defer func() { _ = f.Close() }()

			tail, err := tailLines(f, lines)
			if err != nil {
				return amerrors.InternalError("failed to read log file", err)
			}
			for _, line := range tail {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Log file to read (default ~/.idxstore/logs/idxstore.log)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVar(&path, "path", false, "Print the default log path and exit")

	return cmd
}

// tailLines returns the last n lines of r. n <= 0 returns every line.
func tailLines(r io.Reader, n int) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []string
	for scanner.Scan() {
		out = append(out, scanner.Text())
		if n > 0 && len(out) > n {
			out = out[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

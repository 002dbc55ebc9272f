package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/idxstore/internal/output"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create or delete indexes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>...",
		Short: "Create indexes that do not exist yet",
		Example: `  idxstore index create events
  idxstore index create events audit --backend bleve`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			out := output.New(cmd.OutOrStdout())
			for _, name := range args {
				created, err := s.CreateIndex(cmd.Context(), name)
				if err != nil {
					return err
				}
				out.Successf("Index %s ready", created)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>...",
		Short: "Delete indexes; missing ones are skipped",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			out := output.New(cmd.OutOrStdout())
			for _, name := range args {
				if err := s.DeleteIndex(cmd.Context(), name); err != nil {
					return err
				}
				out.Successf("Index %s deleted", name)
			}
			return nil
		},
	})

	return cmd
}

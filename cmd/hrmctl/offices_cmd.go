package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/noah-isme/railway-hrm-api/internal/models"
)

type managedOutput struct {
	OfficeID    int64           `json:"office_id"`
	HasAdmin    bool            `json:"has_admin"`
	Managed     []models.Office `json:"managed"`
	Adminless   []int64         `json:"adminless_descendants"`
	Descendants []int64         `json:"descendants"`
}

func newOfficesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offices",
		Short: "Inspect the office hierarchy",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "tree",
		Short: "Print the office forest with admin coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			tree, err := a.Offices.Tree(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(tree)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "managed <office-id>",
		Short: "Show which offices an admin of office-id manages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			officeID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || officeID <= 0 {
				return fmt.Errorf("invalid office id %q", args[0])
			}
			a, closeFn, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			hierarchy, err := a.Offices.Hierarchy(cmd.Context())
			if err != nil {
				return err
			}
			if !hierarchy.Has(officeID) {
				return fmt.Errorf("office %d not found", officeID)
			}
			managed, err := a.Offices.ListByIDs(cmd.Context(), hierarchy.ManagedOfficeIDs(officeID))
			if err != nil {
				return err
			}
			return writeJSON(managedOutput{
				OfficeID:    officeID,
				HasAdmin:    hierarchy.HasActiveAdmin(officeID),
				Managed:     managed,
				Adminless:   hierarchy.AdminlessDescendantIDs(officeID),
				Descendants: hierarchy.DescendantIDs(officeID),
			})
		},
	})
	return cmd
}

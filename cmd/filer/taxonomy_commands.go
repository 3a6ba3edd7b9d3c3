package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"filer/internal/daemon"
	"filer/internal/taxonomy"
)

func newTaxonomyCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	taxCmd := &cobra.Command{
		Use:     "taxonomy",
		Aliases: []string{"tree"},
		Short:   "Show and edit the area/category/folder hierarchy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withServices(func(svc *daemon.Services) error {
				areas, err := svc.Store.ListAreas(cmd.Context())
				if err != nil {
					return err
				}
				hierarchy, err := svc.Store.Hierarchy(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					type folderJSON struct {
						Number   string   `json:"number"`
						Name     string   `json:"name"`
						Category string   `json:"category"`
						Area     string   `json:"area"`
						Keywords []string `json:"keywords,omitempty"`
						Storage  string   `json:"storage_path,omitempty"`
					}
					out := make([]folderJSON, 0, len(hierarchy.Folders))
					for _, f := range hierarchy.Folders {
						out = append(out, folderJSON{
							Number:   f.Number,
							Name:     f.Name,
							Category: fmt.Sprintf("%02d %s", f.CategoryNumber, f.CategoryName),
							Area:     f.AreaRange + " " + f.AreaName,
							Keywords: f.Keywords,
							Storage:  f.StoragePath,
						})
					}
					return writeJSON(cmd, out)
				}
				out := cmd.OutOrStdout()
				if len(areas) == 0 {
					fmt.Fprintln(out, "No areas defined")
					return nil
				}
				for _, area := range areas {
					fmt.Fprintf(out, "%s %s\n", area.Range(), area.Name)
					lastCategory := -1
					for _, f := range hierarchy.Folders {
						if f.AreaRange != area.Range() {
							continue
						}
						if f.CategoryNumber != lastCategory {
							fmt.Fprintf(out, "  %02d %s\n", f.CategoryNumber, f.CategoryName)
							lastCategory = f.CategoryNumber
						}
						line := fmt.Sprintf("    %s %s", f.Number, f.Name)
						if len(f.Keywords) > 0 {
							line += " [" + strings.Join(f.Keywords, ", ") + "]"
						}
						fmt.Fprintln(out, line)
					}
				}
				return nil
			})
		},
	}
	taxCmd.Flags().BoolVar(&asJSON, "json", false, "Output folders as JSON")

	taxCmd.AddCommand(newAddAreaCommand(ctx))
	taxCmd.AddCommand(newAddCategoryCommand(ctx))
	taxCmd.AddCommand(newAddFolderCommand(ctx))
	taxCmd.AddCommand(newRemoveFolderCommand(ctx))
	return taxCmd
}

func newAddAreaCommand(ctx *commandContext) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "add-area <start-end> <name>",
		Short: "Create an area such as 10-19 Finance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := taxonomy.ParseAreaRange(args[0])
			if err != nil {
				return err
			}
			return ctx.withServices(func(svc *daemon.Services) error {
				area, err := svc.Store.CreateArea(cmd.Context(), taxonomy.Area{Start: start, End: end, Name: args[1], RootPath: root})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created area %s %s\n", area.Range(), area.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "Base directory for this area instead of storage.root")
	return cmd
}

func newAddCategoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-category <number> <name>",
		Short: "Create a category such as 11 Billing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := taxonomy.ParseCategoryNumber(args[0])
			if err != nil {
				return err
			}
			return ctx.withServices(func(svc *daemon.Services) error {
				category, err := svc.Store.CreateCategory(cmd.Context(), taxonomy.Category{Number: number, Name: args[1]})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created category %02d %s\n", category.Number, category.Name)
				return nil
			})
		},
	}
}

func newAddFolderCommand(ctx *commandContext) *cobra.Command {
	var keywords []string
	var storagePath string
	cmd := &cobra.Command{
		Use:   "add-folder <CC.SS> <name>",
		Short: "Create a folder such as 11.01 Invoices",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svc *daemon.Services) error {
				folder, err := svc.Store.CreateFolder(cmd.Context(), taxonomy.FolderTarget{
					Number:      args[0],
					Name:        args[1],
					Keywords:    keywords,
					StoragePath: storagePath,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created folder %s %s\n", folder.Number, folder.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&keywords, "keywords", nil, "Keywords used by the heuristic matcher")
	cmd.Flags().StringVar(&storagePath, "path", "", "Explicit directory for this folder")
	return cmd
}

func newRemoveFolderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-folder <CC.SS>",
		Short: "Delete a folder from the hierarchy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(svc *daemon.Services) error {
				if err := svc.Store.DeleteFolder(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed folder %s\n", args[0])
				return nil
			})
		},
	}
}

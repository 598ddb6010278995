package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"filemanager/internal/api"

	"github.com/spf13/cobra"
)

func newFilesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage your stored files",
	}

	cmd.AddCommand(
		newFilesListCmd(a),
		newFilesStatsCmd(a),
		newFilesGetCmd(a),
		newFilesDownloadCmd(a),
		newFilesUploadCmd(a),
		newFilesDeleteCmd(a),
	)
	return cmd
}

func newFilesListCmd(a *app) *cobra.Command {
	opts := api.DefaultListOptions()
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files, newest first",
		RunE: a.authenticated(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			var (
				files []api.File
				page  *api.FilePage
				err   error
			)
			if all {
				files, err = a.client.ListAllFiles(ctx)
			} else {
				page, err = a.client.ListFiles(ctx, opts)
				if page != nil {
					files = page.Content
				}
			}
			if err != nil {
				return a.fail(ctx, err, "Failed to load files")
			}

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No files found.")
				return nil
			}

			fmt.Fprintf(out, "%-8s  %-40s  %-10s  %s\n", "ID", "NAME", "SIZE", "CREATED")
			fmt.Fprintf(out, "%-8s  %-40s  %-10s  %s\n", "--", "----", "----", "-------")
			for _, f := range files {
				fmt.Fprintf(out, "%-8d  %-40s  %-10s  %s\n",
					f.ID, f.OriginalFileName, api.FormatSize(f.FileSize), api.FormatCreatedAt(f.CreatedAt))
			}

			if page != nil && page.TotalPages > 1 {
				fmt.Fprintf(out, "\n(page %d of %d, %d files)\n", page.Number+1, page.TotalPages, page.TotalElements)
			}
			return nil
		}),
	}

	cmd.Flags().IntVar(&opts.Page, "page", opts.Page, "Page number, starting at 0")
	cmd.Flags().IntVar(&opts.Size, "size", opts.Size, "Page size")
	cmd.Flags().StringVar(&opts.SortBy, "sort-by", opts.SortBy, "Sort field")
	cmd.Flags().StringVar(&opts.SortDir, "sort-dir", opts.SortDir, "Sort direction (ASC, DESC)")
	cmd.Flags().BoolVar(&all, "all", false, "List every file without paging")
	return cmd
}

func newFilesStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show file count and total size",
		RunE: a.authenticated(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			stats, err := a.client.FileStats(ctx)
			if err != nil {
				return a.fail(ctx, err, "Failed to load statistics")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Files:      %d\n", stats.FileCount)
			fmt.Fprintf(cmd.OutOrStdout(), "Total size: %s\n", api.FormatSize(stats.TotalSize))
			return nil
		}),
	}
}

func newFilesGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one file",
		Args:  cobra.ExactArgs(1),
		RunE: a.authenticated(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			f, err := a.client.GetFile(ctx, id)
			if err != nil {
				return a.fail(ctx, err, "Failed to load file")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:      %d\n", f.ID)
			fmt.Fprintf(out, "Name:    %s\n", f.OriginalFileName)
			fmt.Fprintf(out, "Type:    %s\n", f.ContentType)
			fmt.Fprintf(out, "Size:    %s\n", api.FormatSize(f.FileSize))
			fmt.Fprintf(out, "Created: %s\n", api.FormatCreatedAt(f.CreatedAt))
			return nil
		}),
	}
}

func newFilesDownloadCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a file",
		Args:  cobra.ExactArgs(1),
		RunE: a.authenticated(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, err := a.client.DownloadFile(ctx, id)
			if err != nil {
				return a.fail(ctx, err, "Failed to download file")
			}

			path := output
			if path == "" {
				path = filepath.Base(d.FileName)
			}
			if err := os.WriteFile(path, d.Data, 0644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", path, api.FormatSize(int64(len(d.Data))))
			return nil
		}),
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination path (defaults to the file's name)")
	return cmd
}

func newFilesUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE: a.authenticated(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			res, err := a.client.UploadFile(ctx, filepath.Base(args[0]), f)
			if err != nil {
				return a.fail(ctx, err, "Failed to upload file")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s as file %d (%s)\n",
				res.OriginalFileName, res.FileID, api.FormatSize(res.FileSize))
			return nil
		}),
	}
}

func newFilesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: a.authenticated(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			msg, err := a.client.DeleteFile(ctx, id)
			if err != nil {
				return a.fail(ctx, err, "Failed to delete file")
			}
			if msg.Message == "" {
				msg.Message = "File deleted"
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.Message)
			return nil
		}),
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid file id %q", s)
	}
	return id, nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kir-gadjello/aperture/gallery"
)

// cliNavigator reports navigation on a plain terminal. Reload lists the
// folders again when a local data directory is known.
type cliNavigator struct {
	out    io.Writer
	lister gallery.Lister
}

func (n cliNavigator) Reload() {
	if n.lister == nil {
		return
	}
	folders, err := n.lister.Folders()
	if err != nil {
		return
	}
	for _, f := range folders {
		fmt.Fprintf(n.out, "  %s\n", f)
	}
}

func (n cliNavigator) Navigate(path string) {
	fmt.Fprintln(n.out, dimStyle.Render("→ "+path))
}

func newGalleryController(cmd *cobra.Command, a *app, page gallery.Page) *gallery.Controller {
	assumeYes, _ := cmd.Flags().GetBool("yes")
	prompt := newCLIPrompter(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), assumeYes)
	var lister gallery.Lister
	if a.rc.DataDir != "" {
		lister = gallery.DirLister{Root: a.rc.DataDir}
	}
	nav := cliNavigator{out: cmd.OutOrStdout(), lister: lister}
	return gallery.NewController(a.galleryClient(), prompt, nav, page)
}

func newGalleryCmd() *cobra.Command {
	galleryCmd := &cobra.Command{
		Use:   "gallery",
		Short: "Manage gallery folders and images",
	}
	galleryCmd.PersistentFlags().BoolP("yes", "y", false, "Do not ask for confirmation")

	ok := color.New(color.FgGreen).FprintfFunc()

	galleryCmd.AddCommand(&cobra.Command{
		Use:   "mkdir NAME",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctrl := newGalleryController(cmd, a, gallery.Page{})
			if !ctrl.CreateFolder(cmd.Context(), args[0]) {
				return errReported
			}
			ok(cmd.OutOrStdout(), "✓ Created folder %s\n", args[0])
			return nil
		},
	})

	galleryCmd.AddCommand(&cobra.Command{
		Use:   "rmdir FOLDER",
		Short: "Delete a folder and all its images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctrl := newGalleryController(cmd, a, gallery.Page{Folder: args[0]})
			if !ctrl.DeleteFolder(cmd.Context()) {
				return errReported
			}
			ok(cmd.OutOrStdout(), "✓ Deleted folder %s\n", args[0])
			return nil
		},
	})

	galleryCmd.AddCommand(&cobra.Command{
		Use:   "rm FOLDER FILE",
		Short: "Remove one image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			page := gallery.Page{Folder: args[0], Images: []string{args[1]}}
			ctrl := newGalleryController(cmd, a, page)
			if !ctrl.DeleteImage(cmd.Context(), args[1]) {
				return errReported
			}
			ok(cmd.OutOrStdout(), "✓ Removed %s/%s\n", args[0], args[1])
			return nil
		},
	})

	exifCmd := &cobra.Command{
		Use:   "exif FOLDER FILE",
		Short: "Show the EXIF metadata of an image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctrl := newGalleryController(cmd, a, gallery.Page{Folder: args[0]})
			if !ctrl.ViewExif(cmd.Context(), args[1]) {
				return errReported
			}
			modal := ctrl.Modal()
			fmt.Fprintln(cmd.OutOrStdout(), sanitize(modal.Text))

			if copyIt, _ := cmd.Flags().GetBool("copy"); copyIt {
				if err := clipboard.WriteAll(modal.Text); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
			}
			ctrl.CloseModal()
			return nil
		},
	}
	exifCmd.Flags().BoolP("copy", "x", false, "Also copy the EXIF JSON to the clipboard")
	galleryCmd.AddCommand(exifCmd)

	showCmd := &cobra.Command{
		Use:   "show FOLDER FILE",
		Short: "Display an image inline (iTerm2 protocol)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if !force && !inlineImageSupported(os.Getenv) {
				return fmt.Errorf("terminal does not support inline images (use --force to print anyway)")
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			folder, file := args[0], args[1]
			var data []byte
			if a.rc.DataDir != "" {
				data, err = os.ReadFile(filepath.Join(a.rc.DataDir, "images", filepath.FromSlash(folder), file))
			}
			if data == nil {
				data, err = a.galleryClient().Image(cmd.Context(), folder, file)
			}
			if err != nil {
				return err
			}

			height, _ := cmd.Flags().GetInt("height")
			return writeInlineImage(cmd.OutOrStdout(), file, data, height)
		},
	}
	showCmd.Flags().Int("height", 480, "Maximum height in pixels (0 = original size)")
	showCmd.Flags().Bool("force", false, "Print even if the terminal looks unsupported")
	galleryCmd.AddCommand(showCmd)

	galleryCmd.AddCommand(&cobra.Command{
		Use:   "browse [FOLDER] [FILES...]",
		Short: "Browse folders interactively",
		Long: "Browse folders and images in a terminal UI. Listings come from <data_dir>/images; " +
			"when no data directory is configured, pass the folder and its file names.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			var lister gallery.Lister
			var folder string
			switch {
			case len(args) > 1:
				folder = args[0]
				lister = gallery.StaticLister{Folder: args[0], Files: args[1:]}
			case a.rc.DataDir != "":
				lister = gallery.DirLister{Root: a.rc.DataDir}
				if len(args) == 1 {
					folder = args[0]
				}
			default:
				return fmt.Errorf("no data directory configured: set data_dir, APERTURE_DATA_DIR or --data-dir, or pass FOLDER FILES...")
			}

			stop, err := a.setupTUILog()
			if err != nil {
				return err
			}
			defer stop()

			model := newGalleryTui(cmd.Context(), a.galleryClient(), lister, folder)
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	})

	return galleryCmd
}

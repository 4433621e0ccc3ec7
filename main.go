package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kir-gadjello/aperture/agent"
	"github.com/kir-gadjello/aperture/chat"
	"github.com/kir-gadjello/aperture/gallery"
	"github.com/kir-gadjello/aperture/history"
	"github.com/kir-gadjello/aperture/transport"
)

// errReported is returned by commands that already told the user what went
// wrong; main only sets the exit code.
var errReported = errors.New("error already reported")

// app bundles the per-invocation configuration and HTTP client.
type app struct {
	cfg  *ConfigFile
	rc   RunConfig
	http *http.Client
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rc, err := getRunConfig(cmd, cfg)
	if err != nil {
		return nil, err
	}
	client := transport.New(transport.Options{
		Timeout: rc.Timeout,
		Headers: rc.Headers,
		Verbose: rc.Verbose,
	})
	return &app{cfg: cfg, rc: rc, http: client}, nil
}

func (a *app) agentClient() *agent.Client {
	return agent.New(a.rc.BaseURL, a.http)
}

func (a *app) galleryClient() *gallery.Client {
	return gallery.NewClient(a.rc.BaseURL, a.http)
}

// setupTUILog keeps log output off the screen while a TUI runs: to a file
// with --debug, discarded otherwise.
func (a *app) setupTUILog() (func(), error) {
	if a.rc.Debug {
		f, err := tea.LogToFile(filepath.Join(appDir(), "debug.log"), "aperture")
		if err != nil {
			return nil, fmt.Errorf("open debug log: %w", err)
		}
		return func() { f.Close() }, nil
	}
	log.SetOutput(io.Discard)
	return func() { log.SetOutput(os.Stderr) }, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(appDir(), 0o755); err != nil {
		log.Printf("Warning: cannot create %s: %v", appDir(), err)
	}

	store, closeStore := openHistoryStore(a.rc)
	defer closeStore()

	var opts []chat.Option
	if a.rc.Undo {
		opts = append(opts, chat.WithUndo())
	}
	ctrl := chat.New(a.agentClient(), store, opts...)
	ctrl.Restore()

	plain, _ := cmd.Flags().GetBool("plain")
	if plain || !isInteractive(os.Stdin.Fd()) || !isInteractive(os.Stdout.Fd()) {
		p := &plainChat{
			ctrl:  ctrl,
			in:    cmd.InOrStdin(),
			out:   cmd.OutOrStdout(),
			delay: a.rc.RevealDelay,
		}
		return p.run(cmd.Context())
	}

	stop, err := a.setupTUILog()
	if err != nil {
		return err
	}
	defer stop()

	model := newChatTui(cmd.Context(), ctrl, a.rc.RevealDelay, a.rc.Markdown)
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(cmd.Context())).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func runUndo(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctrl := chat.New(a.agentClient(), nil, chat.WithUndo())
	if err := ctrl.BeginUndo(); err != nil {
		return err
	}
	res, err := ctrl.SendUndo(cmd.Context())
	if !ctrl.CompleteUndo(res, err) {
		color.New(color.FgRed).Fprintln(cmd.ErrOrStderr(), ctrl.Status())
		return errReported
	}
	color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), ctrl.Status())
	return nil
}

func runDoctor(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Aperture Doctor")
	fmt.Fprintln(out, "===============")

	if history.CheckSQLite() {
		fmt.Fprintln(out, "✅ SQLite        : Available (history stored in history.db)")
	} else {
		fmt.Fprintln(out, "⚠️  SQLite        : Unavailable (falling back to history.json)")
		fmt.Fprintln(out, "   -> FIX: Build with CGO_ENABLED=1")
	}

	if _, err := os.Stat(configPath()); err == nil {
		fmt.Fprintf(out, "✅ Configuration : Found (%s)\n", configPath())
	} else {
		fmt.Fprintf(out, "⚠️  Configuration : Missing (%s)\n", configPath())
	}

	a, err := newApp(cmd)
	if err != nil {
		fmt.Fprintf(out, "❌ Configuration : %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.rc.BaseURL, nil)
	if err == nil {
		var resp *http.Response
		if resp, err = a.http.Do(req); err == nil {
			resp.Body.Close()
		}
	}
	if err == nil {
		fmt.Fprintf(out, "✅ Server        : Reachable (%s)\n", a.rc.BaseURL)
	} else {
		fmt.Fprintf(out, "⚠️  Server        : Unreachable (%s): %v\n", a.rc.BaseURL, err)
	}

	if a.rc.DataDir == "" {
		fmt.Fprintln(out, "⚠️  Data dir      : Not set (gallery browse needs FOLDER FILES...)")
	} else if _, err := os.Stat(filepath.Join(a.rc.DataDir, "images")); err == nil {
		fmt.Fprintf(out, "✅ Data dir      : %s\n", a.rc.DataDir)
	} else {
		fmt.Fprintf(out, "⚠️  Data dir      : %s has no images/ directory\n", a.rc.DataDir)
	}

	if clipboard.Unsupported {
		fmt.Fprintln(out, "⚠️  Clipboard     : Unsupported (install xclip, xsel or wl-clipboard)")
	} else {
		fmt.Fprintln(out, "✅ Clipboard     : Available")
	}

	if isInteractive(os.Stdout.Fd()) {
		fmt.Fprintln(out, "✅ Terminal      : Interactive (chat opens the TUI)")
	} else {
		fmt.Fprintln(out, "⚠️  Terminal      : Not a TTY (chat runs in line mode)")
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "aperture",
		Short:         "Terminal client for the Aperture image dump",
		Args:          cobra.NoArgs,
		RunE:          runChat,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("server", "s", "", "Server profile from config.yaml (env APERTURE_SERVER)")
	flags.StringP("base-url", "b", defaultBaseURL, "Server base URL (env APERTURE_BASE_URL)")
	flags.Int("timeout", 0, "Request timeout in seconds (0 = none)")
	flags.StringArrayP("header", "H", nil, "Extra request header Name=Value (repeatable)")
	flags.Bool("undo", false, "Enable the undo control")
	flags.String("data-dir", "", "Local copy of the server data directory (env APERTURE_DATA_DIR)")
	flags.BoolP("verbose", "v", false, "Log HTTP requests and responses")
	flags.BoolP("debug", "D", false, "Write TUI logs to ~/.aperture/debug.log")

	rootCmd.Flags().Bool("plain", false, "Line mode even on a terminal")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the agent (default command)",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}
	chatCmd.Flags().Bool("plain", false, "Line mode even on a terminal")
	rootCmd.AddCommand(chatCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "undo",
		Short: "Revert the last executed agent action",
		Args:  cobra.NoArgs,
		RunE:  runUndo,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, server and system capabilities",
		Args:  cobra.NoArgs,
		Run:   runDoctor,
	})

	rootCmd.AddCommand(newGalleryCmd())
	rootCmd.AddCommand(newHistoryCmd())
	return rootCmd
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

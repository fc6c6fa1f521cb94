package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/handorbit/internal/app"
	"github.com/ayusman/handorbit/internal/config"
	"github.com/ayusman/handorbit/internal/report"
	"github.com/ayusman/handorbit/internal/server"
	"github.com/ayusman/handorbit/internal/store"
	"github.com/ayusman/handorbit/internal/tray"
)

var (
	flagConfig   string
	flagDatabase string

	flagListen       string
	flagStatic       string
	flagCamera       int
	flagTracking     bool
	flagRecord       bool
	flagTray         bool
	flagRenderFPS    int
	flagBroadcastFPS int

	flagEvery int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "handorbit",
		Short: "handorbit - orbit a 3D scene with your hand, mouse or touch",
		Long: `handorbit turns webcam hand landmarks and pointer input into a smoothed
orientation for a 3D viewer served over HTTP and websocket.

Hand tracking needs a camera and the MediaPipe helper; without them the
viewer still works with mouse, wheel and touch.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDatabase, "db", "", "sqlite database path (default ~/.handorbit/handorbit.db)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the viewer server and the control loops",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "HTTP listen address")
	serveCmd.Flags().StringVar(&flagStatic, "static", "", "directory with the viewer's static files")
	serveCmd.Flags().IntVar(&flagCamera, "camera", 0, "camera device id")
	serveCmd.Flags().BoolVar(&flagTracking, "tracking", true, "start with hand tracking enabled")
	serveCmd.Flags().BoolVar(&flagRecord, "record", false, "record inference ticks as a session")
	serveCmd.Flags().BoolVar(&flagTray, "tray", false, "show the system tray menu")
	serveCmd.Flags().IntVar(&flagRenderFPS, "render-fps", 0, "render loop rate")
	serveCmd.Flags().IntVar(&flagBroadcastFPS, "broadcast-fps", 0, "snapshot rate on /api/control")

	replayCmd := &cobra.Command{
		Use:   "replay <session-id>",
		Short: "Run a recorded session through the pipeline and print a report",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
	replayCmd.Flags().IntVar(&flagEvery, "every", 10, "print every nth step (0 for the summary only)")
	replayCmd.Flags().IntVar(&flagRenderFPS, "render-fps", 0, "render loop rate")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessions,
	}
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a recorded session",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteSession,
	})

	rootCmd.AddCommand(serveCmd, replayCmd, sessionsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config and applies the flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database = flagDatabase
	}
	if flags.Changed("listen") {
		cfg.Listen = flagListen
	}
	if flags.Changed("static") {
		cfg.StaticDir = flagStatic
	}
	if flags.Changed("camera") {
		cfg.Camera.DeviceID = flagCamera
	}
	if flags.Changed("tracking") {
		cfg.Tracking = flagTracking
	}
	if flags.Changed("record") {
		cfg.Recording = flagRecord
	}
	if flags.Changed("tray") {
		cfg.Tray = flagTray
	}
	if flags.Changed("render-fps") {
		cfg.RenderFPS = flagRenderFPS
	}
	if flags.Changed("broadcast-fps") {
		cfg.BroadcastFPS = flagBroadcastFPS
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = findWebDir()
	}
	return cfg, cfg.Validate()
}

func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return store.New(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := openStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	// A runtime toggle outlives restarts unless the flag says otherwise.
	tracking := cfg.Tracking
	if !cmd.Flags().Changed("tracking") {
		tracking = app.TrackingPreference(st, cfg.Tracking)
	}

	a := app.New(app.Config{
		Store:           st,
		Camera:          cfg.Camera,
		RenderFPS:       cfg.RenderFPS,
		Recording:       cfg.Recording,
		MotionThreshold: cfg.MotionThreshold,
		Detector:        cfg.Detector,
		Tuning:          cfg.Tuning,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, tracking); err != nil {
		return err
	}
	defer a.Stop()

	if cfg.StaticDir != "" {
		log.Printf("Serving static files from: %s", cfg.StaticDir)
	}
	srv := server.New(server.Config{
		StaticDir:    cfg.StaticDir,
		Store:        st,
		App:          a,
		BroadcastFPS: cfg.BroadcastFPS,
	})

	log.Printf("Starting server on %s", cfg.Listen)
	if !cfg.Tray {
		return srv.ListenAndServe(ctx, cfg.Listen)
	}

	// The tray owns the main thread until it quits.
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe(ctx, cfg.Listen)
	}()

	tr := tray.New(a.TrackingEnabled())
	tr.OnToggle(func(enabled bool) error {
		return a.SetTrackingEnabled(enabled)
	})
	tr.OnOpen(func() {
		if err := openBrowser(viewerURL(cfg.Listen)); err != nil {
			log.Printf("Error opening browser: %v", err)
		}
	})
	tr.OnQuit(stop)
	a.RegisterLabelCallback(tr.SetGesture)
	go func() {
		select {
		case <-ctx.Done():
			tr.Quit()
		case err := <-errc:
			errc <- err
			tr.Quit()
		}
	}()
	tr.Run()

	stop()
	return <-errc
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	sess, err := st.Sessions().GetByID(args[0])
	if err != nil {
		return fmt.Errorf("session %s: %w", args[0], err)
	}
	frames, err := st.Sessions().Frames(sess.ID)
	if err != nil {
		return fmt.Errorf("read frames: %w", err)
	}

	steps, err := app.Replay(cmd.Context(), frames, app.SavedTuning(st, cfg.Tuning), cfg.RenderFPS)
	if err != nil {
		return fmt.Errorf("replay %s: %w", sess.ID, err)
	}
	return report.Replay(cmd.OutOrStdout(), sess, steps, flagEvery)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	sessions, err := st.Sessions().List()
	if err != nil {
		return err
	}
	return report.Sessions(cmd.OutOrStdout(), sessions)
}

func runDeleteSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	if err := st.Sessions().Delete(args[0]); err != nil {
		return fmt.Errorf("session %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}

// viewerURL turns a listen address into a local URL.
func viewerURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "http://localhost" + listen
	}
	return "http://" + listen
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.handorbit/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.DataDir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}

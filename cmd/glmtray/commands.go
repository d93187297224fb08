package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli"

	"github.com/j-veylop/glm-tray/internal/app"
	"github.com/j-veylop/glm-tray/internal/config"
	"github.com/j-veylop/glm-tray/internal/credentials"
	"github.com/j-veylop/glm-tray/internal/logger"
	"github.com/j-veylop/glm-tray/internal/models"
	"github.com/j-veylop/glm-tray/internal/services"
	"github.com/j-veylop/glm-tray/internal/tray"
	"github.com/j-veylop/glm-tray/internal/ui/tabs/history"
	"github.com/j-veylop/glm-tray/internal/ui/tabs/info"
	"github.com/j-veylop/glm-tray/internal/ui/tabs/slots"
	"github.com/j-veylop/glm-tray/internal/version"
)

// transport overrides the HTTP client in tests.
var transport services.Transport

// stdin is read by the key command.
var stdin io.Reader = os.Stdin

var historyFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "slot, s",
		Usage: "only quota samples of this slot (0 for all)",
	},
	cli.IntFlag{
		Name:  "limit, n",
		Usage: "number of rows per section",
		Value: 20,
	},
}

var statsFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "slot, s",
		Usage: "slot number (1-5)",
		Value: 1,
	},
}

func newApp(stdout, stderr io.Writer) *cli.App {
	a := cli.NewApp()
	a.Name = version.AppName
	a.HelpName = "glmtray"
	a.Usage = "keeps GLM coding plan keys warm and shows their quota"
	a.UsageText = "glmtray [command] [arguments...]"
	a.Version = version.GetVersion()
	a.HideVersion = true
	a.Writer = stdout
	a.ErrWriter = stderr
	a.Action = runTUI
	a.Commands = []cli.Command{
		{
			Name:   "tui",
			Usage:  "open the terminal dashboard (default)",
			Action: runTUI,
		},
		{
			Name:   "daemon",
			Usage:  "run the schedulers without a user interface",
			Action: runDaemon,
		},
		{
			Name:   "status",
			Usage:  "fetch and print the quota of every active slot",
			Action: runStatus,
		},
		{
			Name:   "warmup",
			Usage:  "send a warmup request for every active slot",
			Action: runWarmup,
		},
		{
			Name:   "stats",
			Usage:  "print plan limits and 24h usage of a slot",
			Flags:  statsFlags,
			Action: runStats,
		},
		{
			Name:   "history",
			Usage:  "print recent wake events and quota samples",
			Flags:  historyFlags,
			Action: runHistory,
		},
		{
			Name:      "key",
			Usage:     "store an API key in the OS keyring",
			ArgsUsage: "<user>",
			Description: "Reads the key from stdin and prints the reference to put\n" +
				"in the api_key field of the settings file.",
			Action: runKey,
		},
		{
			Name:    "version",
			Aliases: []string{"v"},
			Usage:   "print version information",
			Action: func(c *cli.Context) error {
				_, err := fmt.Fprintln(c.App.Writer, version.Info())
				return err
			},
		},
	}
	return a
}

// withManager loads options, sets up logging and runs fn with a service manager.
// watch keeps the settings file watched so edits reach the running engine.
func withManager(interactive, watch bool, fn func(ctx context.Context, mgr *services.Manager) error) error {
	opts, err := config.LoadOptions()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	settings, err := config.Load(opts.SettingsPath, opts.Debug)
	if err != nil {
		// The manager reports the failure once logging is set up.
		settings = config.Validate(models.DefaultAppConfig(), opts.Debug)
	}

	closer, err := logger.Setup(logOptions(opts, settings, interactive))
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	var options []services.Option
	if !watch {
		options = append(options, services.WithoutSettingsWatch())
	}
	mgr, err := services.NewManager(opts, transport, options...)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			logger.Warn("error closing services", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, mgr)
}

// logOptions merges the process options with the log settings of the settings
// file. An explicit GLM_TRAY_LOG_DIR wins over log_directory.
func logOptions(opts *config.Options, settings models.AppConfig, interactive bool) logger.Options {
	out := logger.Options{
		Dir:        opts.LogDir,
		Level:      opts.LogLevel,
		Debug:      opts.Debug || settings.Debug,
		MaxAgeDays: settings.MaxLogDays,
	}
	if out.Dir == "" {
		out.Dir = settings.LogDirectory
	}
	// The dashboard owns the terminal.
	if interactive && out.Dir == "" {
		out.Dir = filepath.Join(opts.ConfigDir, "logs")
	}
	return out
}

func runTUI(_ *cli.Context) error {
	return withManager(true, true, func(ctx context.Context, mgr *services.Manager) error {
		model := app.NewModel(ctx, mgr)
		state := model.GetState()
		opts := mgr.Options()
		model.SetTabs([]app.Tab{
			slots.New(state, mgr),
			history.New(state, mgr),
			info.New(state, &opts),
		})

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	})
}

func runDaemon(_ *cli.Context) error {
	return withManager(false, true, func(ctx context.Context, mgr *services.Manager) error {
		mgr.StartMonitoring(ctx)
		logger.Info("daemon started", "settings", mgr.Options().SettingsPath)

		<-ctx.Done()

		mgr.StopMonitoring()
		logger.Info("daemon stopped")
		return nil
	})
}

func runStatus(c *cli.Context) error {
	return withManager(false, false, func(ctx context.Context, mgr *services.Manager) error {
		for _, line := range statusLines(mgr.FetchQuotaAll(ctx)) {
			if _, err := fmt.Fprintln(c.App.Writer, line); err != nil {
				return err
			}
		}
		return nil
	})
}

// statusLines renders one-shot results the way the tray summary does.
func statusLines(results map[int]services.QuotaResult) []string {
	if len(results) == 0 {
		return []string{tray.IdleLine}
	}

	slotNums := make([]int, 0, len(results))
	for slot := range results {
		slotNums = append(slotNums, slot)
	}
	sort.Ints(slotNums)

	lines := make([]string, 0, len(results))
	for _, slot := range slotNums {
		r := results[slot]
		if r.Err != nil || r.Snapshot == nil {
			lines = append(lines, fmt.Sprintf("%s: error: %v", r.Label, r.Err))
			continue
		}
		lines = append(lines, tray.SlotLine(models.SlotRuntimeStatus{
			Slot:         slot,
			Name:         r.Label,
			Enabled:      true,
			Percentage:   models.IntPtr(r.Snapshot.Percentage),
			NextResetHMS: r.Snapshot.NextResetHMS,
			TimerActive:  r.Snapshot.TimerActive,
		}))
	}
	return lines
}

func runWarmup(c *cli.Context) error {
	return withManager(false, false, func(ctx context.Context, mgr *services.Manager) error {
		ok, failed := mgr.WarmupAll(ctx)
		if ok+failed == 0 {
			_, err := fmt.Fprintln(c.App.Writer, "No active slots to warm up")
			return err
		}
		if _, err := fmt.Fprintf(c.App.Writer, "Warmup: %d ok, %d failed\n", ok, failed); err != nil {
			return err
		}
		if failed > 0 {
			return cli.NewExitError(fmt.Sprintf("%d warmup request(s) failed", failed), 1)
		}
		return nil
	})
}

func runStats(c *cli.Context) error {
	slot := c.Int("slot")
	if slot < 1 || slot > models.MaxSlots {
		return cli.NewExitError(fmt.Sprintf("slot must be between 1 and %d", models.MaxSlots), 2)
	}

	return withManager(false, false, func(ctx context.Context, mgr *services.Manager) error {
		stats, err := mgr.FetchSlotStats(ctx, slot)
		if err != nil {
			return fmt.Errorf("slot %d: %w", slot, err)
		}
		_, err = io.WriteString(c.App.Writer, formatStats(slot, stats))
		return err
	})
}

func formatStats(slot int, stats *models.SlotStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Slot %d (%s plan)\n", slot, stats.Level)
	for _, l := range stats.Limits {
		fmt.Fprintf(&b, "  %-16s %3d%%", l.TypeName, l.Percentage)
		if l.NextResetHMS != "" {
			fmt.Fprintf(&b, "  resets %s", l.NextResetHMS)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Last 24h: %d calls, %d tokens\n", stats.TotalModelCalls24h, stats.TotalTokens24h)
	fmt.Fprintf(&b, "Tools: %d search, %d web read, %d zread, %d search MCP\n",
		stats.TotalNetworkSearch24h, stats.TotalWebRead24h, stats.TotalZread24h, stats.TotalSearchMCP24h)
	return b.String()
}

func runHistory(c *cli.Context) error {
	slot, limit := c.Int("slot"), c.Int("limit")
	if slot < 0 || slot > models.MaxSlots {
		return cli.NewExitError(fmt.Sprintf("slot must be between 0 and %d", models.MaxSlots), 2)
	}
	if limit <= 0 {
		return cli.NewExitError("limit must be positive", 2)
	}

	return withManager(false, false, func(_ context.Context, mgr *services.Manager) error {
		events, err := mgr.WakeHistory(limit)
		if err != nil {
			return fmt.Errorf("failed to read wake history: %w", err)
		}
		samples, err := mgr.QuotaHistory(slot, limit)
		if err != nil {
			return fmt.Errorf("failed to read quota history: %w", err)
		}
		_, err = io.WriteString(c.App.Writer, formatHistory(events, samples))
		return err
	})
}

const historyTimeLayout = "2006-01-02 15:04"

func formatHistory(events []models.WakeEvent, samples []models.QuotaSample) string {
	var b strings.Builder

	b.WriteString("Wake events:\n")
	if len(events) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, e := range events {
		fmt.Fprintf(&b, "  %s  %-3s %-18s %s", e.Timestamp.Local().Format(historyTimeLayout),
			models.SlotLabel(e.Slot), e.Kind, e.Reason)
		if e.Error != "" {
			fmt.Fprintf(&b, " (%s)", e.Error)
		}
		b.WriteString("\n")
	}

	b.WriteString("Quota samples:\n")
	if len(samples) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, s := range samples {
		reset := "idle"
		if s.TimerActive && s.NextResetEpochMs != nil {
			reset = "resets " + time.UnixMilli(*s.NextResetEpochMs).Local().Format("15:04:05")
		}
		fmt.Fprintf(&b, "  %s  %-3s %3d%%  %s\n", s.Timestamp.Local().Format(historyTimeLayout),
			models.SlotLabel(s.Slot), s.Percentage, reset)
	}
	return b.String()
}

func runKey(c *cli.Context) error {
	user := c.Args().First()
	if user == "" {
		return cli.NewExitError("usage: glmtray key <user>", 2)
	}

	secret, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read key: %w", err)
	}
	if strings.TrimSpace(secret) == "" {
		return cli.NewExitError("no key given on stdin", 2)
	}

	ref, err := credentials.Store(user, secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, ref)
	return err
}

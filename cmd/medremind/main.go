// medremind is the desktop alert agent: it watches the tracking
// backend's reminder set and fires sound and notification alerts as
// reminders come due.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/AAs6395/medremind/internal/alert"
	"github.com/AAs6395/medremind/internal/audio"
	"github.com/AAs6395/medremind/internal/backend"
	"github.com/AAs6395/medremind/internal/channels/discord"
	"github.com/AAs6395/medremind/internal/channels/telegram"
	"github.com/AAs6395/medremind/internal/config"
	apperrors "github.com/AAs6395/medremind/internal/errors"
	"github.com/AAs6395/medremind/internal/metrics"
	"github.com/AAs6395/medremind/internal/notify"
	"github.com/AAs6395/medremind/internal/reminder"
	"github.com/AAs6395/medremind/internal/scheduler"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("medremind version %s\n", version)
			return
		case "doctor":
			runDoctor()
			return
		case "test-alert":
			runTestAlert()
			return
		case "reminders":
			runRemindersCommand(os.Args[2:])
			return
		case "login":
			runLogin()
			return
		case "config":
			runConfigCommand(os.Args[2:])
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "run":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}

	flag.Parse()
	runAgent()
}

func loadConfig() *config.Config {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load env files: %v\n", err)
	}
	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func buildLogger(cfg *config.Config) *zap.Logger {
	var zc zap.Config
	if cfg.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.Log.Level); err == nil {
		zc.Level = level
	}
	logger, err := zc.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return logger
}

func runAgent() {
	cfg := loadConfig()
	logger := buildLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting medremind agent",
		zap.String("version", version),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Duration("tick_interval", cfg.Agent.TickInterval),
	)

	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
	}, logger)

	cache := scheduler.NewCache(client, logger)
	tracker := scheduler.NewTracker()
	cache.OnRemoved(tracker.Clear)

	var sound alert.Sound
	if cfg.Alerts.Sound {
		sound = audio.NewEngine(logger)
	}

	var notifier alert.Notifier
	if cfg.Notifications.Enabled {
		gate := notify.NewGate(notify.ProbeRequest(logger), logger)
		notifier = notify.NewNotifier(gate, nil, cfg.Notifications.Timeout, logger)
	}

	dispatcher := alert.NewDispatcher(sound, notifier, buildChannels(cfg, logger), logger)

	acks := backend.NewAckSender(client, logger)
	acks.Start()

	sched := scheduler.NewScheduler(cache, tracker, dispatcher, acks, logger).
		WithInterval(cfg.Agent.TickInterval).
		WithWindows(reminder.Windows{
			Lead:  cfg.Alerts.PreAlertLead,
			Grace: cfg.Alerts.DueAlertGrace,
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First sync before the loop starts; failure is survivable, the
	// watcher and resync ticker keep trying.
	refreshCtx, refreshCancel := context.WithTimeout(ctx, cfg.Backend.Timeout)
	if err := cache.Refresh(refreshCtx); err != nil {
		logger.Warn("Initial reminder sync failed", zap.Error(err))
	}
	refreshCancel()

	// The resync ticker runs regardless of the change feed; with the
	// feed off it is the only way new and deleted reminders reach the
	// cache.
	go backend.RunResync(ctx, cfg.Agent.ResyncInterval, cache.Refresh, logger)

	if cfg.Backend.Watch {
		watcher := backend.NewWatcher(cfg.Backend.BaseURL, cfg.Backend.Token, cache.Refresh, logger)
		go watcher.Run(ctx)
	}

	if cfg.Monitor.Enabled {
		go func() {
			logger.Info("Metrics listener started", zap.String("listen", cfg.Monitor.Listen))
			if err := http.ListenAndServe(cfg.Monitor.Listen, metrics.Handler()); err != nil {
				logger.Error("Metrics listener failed", zap.Error(err))
			}
		}()
	}

	if err := sched.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	if err := sched.Stop(); err != nil {
		logger.Error("Scheduler stop failed", zap.Error(err))
	}
	dispatcher.Drain(5 * time.Second)
	dispatcher.CloseChannels()
	acks.Stop()
	cancel()
}

func buildChannels(cfg *config.Config, logger *zap.Logger) []alert.Channel {
	var out []alert.Channel

	if cfg.Channels.Telegram.Enabled {
		ch, err := telegram.New(telegram.Config{
			Token:   cfg.Channels.Telegram.BotToken,
			ChatID:  cfg.Channels.Telegram.ChatID,
			Enabled: true,
		}, logger)
		if err != nil {
			logger.Warn("Telegram channel disabled", zap.Error(err))
		} else {
			out = append(out, ch)
		}
	}

	if cfg.Channels.Discord.Enabled {
		ch, err := discord.New(discord.Config{
			Token:     cfg.Channels.Discord.Token,
			ChannelID: cfg.Channels.Discord.ChannelID,
			Enabled:   true,
		}, logger)
		if err != nil {
			logger.Warn("Discord channel disabled", zap.Error(err))
		} else {
			out = append(out, ch)
		}
	}

	return out
}

// runTestAlert fires one of each alert tier through the real dispatcher
// so the user can verify sound and notification delivery end to end.
func runTestAlert() {
	cfg := loadConfig()
	logger := buildLogger(cfg)
	defer logger.Sync()

	gate := notify.NewGate(notify.ProbeRequest(logger), logger)
	notifier := notify.NewNotifier(gate, nil, cfg.Notifications.Timeout, logger)
	dispatcher := alert.NewDispatcher(audio.NewEngine(logger), notifier, nil, logger)

	now := time.Now()
	fmt.Println("Dispatching a pre-due chime...")
	dispatcher.Dispatch(alert.Event{
		Reminder:  reminder.Reminder{ID: "test", Title: "Test reminder", DueAt: now.Add(5 * time.Minute)},
		Threshold: reminder.PreAlert,
		At:        now,
	})
	dispatcher.Drain(15 * time.Second)

	fmt.Println("Dispatching an urgent due beep...")
	dispatcher.Dispatch(alert.Event{
		Reminder:  reminder.Reminder{ID: "test", Title: "Test reminder", DueAt: now},
		Threshold: reminder.DueAlert,
		At:        now,
	})
	dispatcher.Drain(15 * time.Second)

	fmt.Println("Done. If you heard nothing, run 'medremind doctor'.")
}

func runRemindersCommand(args []string) {
	cfg := loadConfig()
	logger := zap.NewNop()
	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list", "ls":
		listReminders(ctx, client, cfg)

	case "add":
		addFlags := flag.NewFlagSet("reminders add", flag.ExitOnError)
		title := addFlags.String("title", "", "Reminder title")
		at := addFlags.String("at", "", "Due time (RFC3339 or '2006-01-02 15:04')")
		notes := addFlags.String("notes", "", "Optional notes")
		addFlags.Parse(args[1:])

		if *title == "" || *at == "" {
			fmt.Println("Usage: medremind reminders add -title <text> -at <time> [-notes <text>]")
			os.Exit(1)
		}

		dueAt, err := parseWhen(*at)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		created, err := client.CreateReminder(ctx, reminder.Reminder{Title: *title, DueAt: dueAt, Notes: *notes})
		if err != nil {
			fmt.Printf("Error creating reminder: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created %s: %s at %s\n", created.ID, created.Title, created.DueAt.Local().Format("Mon 15:04"))

	case "rm", "delete":
		if len(args) < 2 {
			fmt.Println("Usage: medremind reminders rm <id>")
			os.Exit(1)
		}
		if err := client.DeleteReminder(ctx, args[1]); err != nil {
			fmt.Printf("Error deleting reminder: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted %s\n", args[1])

	default:
		fmt.Println("Usage: medremind reminders [list|add|rm]")
	}
}

func listReminders(ctx context.Context, client *backend.Client, cfg *config.Config) {
	items, err := client.ListReminders(ctx)
	if err != nil {
		fmt.Printf("Error listing reminders: %v\n", err)
		os.Exit(1)
	}

	if len(items) == 0 {
		fmt.Println("No reminders.")
		return
	}

	sort.Slice(items, func(i, j int) bool { return items[i].DueAt.Before(items[j].DueAt) })

	styled := term.IsTerminal(int(os.Stdout.Fd()))
	windows := reminder.Windows{Lead: cfg.Alerts.PreAlertLead, Grace: cfg.Alerts.DueAlertGrace}
	now := time.Now()

	for _, r := range items {
		line := fmt.Sprintf("%-40s  %s  %s", r.Title, r.DueAt.Local().Format("Mon 2006-01-02 15:04"), r.ID)
		if !styled {
			if r.Notified {
				line += "  (notified)"
			}
			fmt.Println(line)
			continue
		}

		switch {
		case r.Notified || now.After(r.DueAt.Add(windows.Grace)):
			fmt.Println(doneStyle.Render(line))
		case windows.Contains(reminder.PreAlert, r.DueAt, now) || windows.Contains(reminder.DueAlert, r.DueAt, now):
			fmt.Println(dueStyle.Render(line))
		default:
			fmt.Println(titleStyle.Render(line))
		}
	}
}

func runLogin() {
	cfg := loadConfig()
	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, zap.NewNop())

	fmt.Print("Backend password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := client.Login(ctx, string(password))
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Login successful. Add this to your config or environment:")
	fmt.Printf("\n  MEDREMIND_BACKEND_TOKEN=%s\n", token)
}

func runConfigCommand(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: medremind config [init|show|path]")
		return
	}

	path := *configPath
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".config", "medremind", "medremind.yaml")
	}

	switch args[0] {
	case "init":
		if err := config.WriteDefault(path); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default config to %s\n", path)

	case "show", "view":
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("Error reading config: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(string(data))

	case "path":
		fmt.Println(path)

	default:
		fmt.Println("Usage: medremind config [init|show|path]")
	}
}

func runDoctor() {
	cfg := loadConfig()
	logger := zap.NewNop()

	fmt.Println("medremind diagnostics")
	fmt.Println("=====================")
	fmt.Println()

	issues := 0
	report := func(ok bool, label, detail string) {
		mark := okStyle.Render("ok")
		if !ok {
			mark = failStyle.Render("fail")
			issues++
		}
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			mark = "ok"
			if !ok {
				mark = "FAIL"
			}
		}
		fmt.Printf("  [%s] %-16s %s\n", mark, label, detail)
	}

	report(true, "config", fmt.Sprintf("backend=%s tick=%s lead=%s grace=%s",
		cfg.Backend.BaseURL, cfg.Agent.TickInterval, cfg.Alerts.PreAlertLead, cfg.Alerts.DueAlertGrace))

	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		report(false, "backend", fmt.Sprintf("unreachable: %v", err))
	} else {
		items, err := client.ListReminders(ctx)
		if err != nil {
			if apperrors.GetCode(err) == apperrors.ErrUnauthorized.Code {
				report(false, "backend", "reachable but unauthorized, run 'medremind login'")
			} else {
				report(false, "backend", fmt.Sprintf("list failed: %v", err))
			}
		} else {
			report(true, "backend", fmt.Sprintf("reachable, %d reminders", len(items)))
		}
	}

	engine := audio.NewEngine(zap.NewNop())
	if err := engine.PlayTone(ctx, audio.CueChime); err != nil {
		report(false, "audio", fmt.Sprintf("tone playback failed: %v", err))
	} else {
		report(true, "audio", "tone playback works")
	}

	gate := notify.NewGate(notify.ProbeRequest(logger), logger)
	state := gate.Resolve(ctx)
	report(state == notify.StateGranted, "notifications", "permission "+state.String())

	fmt.Println()
	if issues == 0 {
		fmt.Println("All checks passed.")
	} else {
		fmt.Printf("%d issue(s) found.\n", issues)
	}
	if issues > 0 {
		os.Exit(1)
	}
}

// parseWhen accepts the handful of time spellings people actually type.
func parseWhen(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04",
		"2006-01-02T15:04",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	// Bare clock time means the next occurrence of that time.
	if t, err := time.ParseInLocation("15:04", s, time.Local); err == nil {
		now := time.Now()
		at := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, time.Local)
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return at, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (try RFC3339, '2006-01-02 15:04', or '15:04')", s)
}

func printHelp() {
	help := strings.TrimLeft(`
medremind - medication reminder alert agent

Usage:
  medremind [run]                       Run the alert agent (default)
  medremind reminders list              List reminders on the backend
  medremind reminders add -title <t> -at <time> [-notes <n>]
  medremind reminders rm <id>           Delete a reminder
  medremind test-alert                  Play both alert tiers now
  medremind login                       Obtain a backend API token
  medremind config [init|show|path]     Manage the config file
  medremind doctor                      Run diagnostics
  medremind version                     Show version

Flags:
  --config <path>   Path to config file
  --data <path>     Path to data directory
`, "\n")
	fmt.Print(help)
}

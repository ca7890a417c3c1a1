package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/Zacy-Sokach/PolyCanvas/internal/backend"
	"github.com/Zacy-Sokach/PolyCanvas/internal/config"
	"github.com/Zacy-Sokach/PolyCanvas/internal/gallery"
	"github.com/Zacy-Sokach/PolyCanvas/internal/history"
	"github.com/Zacy-Sokach/PolyCanvas/internal/params"
	"github.com/Zacy-Sokach/PolyCanvas/internal/studio"
	"github.com/Zacy-Sokach/PolyCanvas/internal/tui"
	"github.com/Zacy-Sokach/PolyCanvas/internal/utils"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	Version = "dev"
)

func main() {
	// 处理命令行参数
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "-v", "--version":
			fmt.Printf("PolyCanvas %s\n", Version)
			os.Exit(0)
		case "-h", "--help":
			printHelp()
			os.Exit(0)
		case "history":
			if err := runHistory(); err != nil {
				fmt.Printf("读取历史失败: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		}
	}

	// 添加panic恢复
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("程序发生panic: %v\n", r)
			fmt.Println("堆栈跟踪:")
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 首次运行时写出默认配置，方便用户修改
	if !config.ConfigExists() {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			fmt.Printf("保存配置失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("欢迎使用 PolyCanvas!"))
		fmt.Printf("已写入默认配置: %s\n", configDisplayPath())
	}

	if !isTerminal() {
		fmt.Println("PolyCanvas 需要在交互式终端中运行")
		fmt.Printf("配置文件: %s\n", configDisplayPath())
		fmt.Printf("生成服务: %s (%s)\n", cfg.Backend.URL, cfg.Backend.Device)
		return
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Printf("打开日志文件失败: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, logger); err != nil {
		logger.Error("程序运行错误", "err", err)
		fmt.Printf("程序运行错误: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("PolyCanvas - text-to-image studio for the terminal")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  polycanvas                Start the interactive TUI")
	fmt.Println("  polycanvas history        Show the most recent generations")
	fmt.Println("  polycanvas -v, --version  Show version information")
	fmt.Println("  polycanvas -h, --help     Show help information")
	fmt.Println()
	fmt.Println("Keys in TUI:")
	fmt.Println("  tab / shift+tab           Move focus")
	fmt.Println("  ←/→, ↑/↓                  Adjust slider, sampler or gallery cursor")
	fmt.Println("  enter                     Preview the selected thumbnail")
	fmt.Println("  ctrl+l                    Load the model")
	fmt.Println("  ctrl+g                    Generate")
	fmt.Println("  ctrl+s                    Save the last batch to a folder")
	fmt.Println("  ctrl+c                    Quit")
	fmt.Println()
	fmt.Printf("Config: %s\n", configDisplayPath())
}

func configDisplayPath() string {
	path, err := config.ConfigPath()
	if err != nil {
		return "(unknown)"
	}
	return utils.DisplayPath(path)
}

// newLogger 日志写入文件，标准输出留给界面
func newLogger(cfg *config.Config) (*log.Logger, func(), error) {
	path, err := cfg.LogPath()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		Prefix:          "polycanvas",
		Level:           level,
	})
	log.SetDefault(logger)
	return logger, func() { f.Close() }, nil
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx := context.Background()

	retry := backend.DefaultRetryPolicy()
	retry.MaxRetries = cfg.Backend.MaxRetries
	be, err := backend.NewHTTPBackend(backend.HTTPConfig{
		URL:     cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout(),
		Retry:   retry,
	})
	if err != nil {
		return err
	}

	store, err := gallery.NewStore(cfg.OutputDir, cfg.ThumbnailSize)
	if err != nil {
		return err
	}

	bus := studio.NewMemoryEventBus()
	bus.OnError(func(e studio.Event, err error) {
		logger.Warn("处理通知失败", "event", e.Type(), "err", err)
	})

	sc := &studio.Config{
		Panel:   params.NewPanel(cfg.Defaults.PanelDefaults()),
		Session: backend.NewSession(be, cfg.Backend.Device, logger),
		Store:   store,
		Device:  cfg.Backend.Device,
		Bus:     bus,
		Logger:  logger,
	}
	if repo, db, err := openHistory(ctx, cfg, logger); err != nil {
		// 历史记录不可用时继续运行
		logger.Warn("历史记录不可用", "err", err)
	} else if repo != nil {
		sc.History = repo
		sc.HistoryDB = db
	}

	ctrl, err := studio.New(sc)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	logger.Info("启动", "version", Version, "backend", cfg.Backend.URL, "session", ctrl.SessionID())

	tui.Version = Version
	p := tea.NewProgram(tui.New(ctx, ctrl, logger), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}

func openHistory(ctx context.Context, cfg *config.Config, logger *log.Logger) (history.Repository, io.Closer, error) {
	if !cfg.History.Enabled {
		return nil, nil, nil
	}
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, nil, err
	}
	db, err := history.Open(ctx, path, logger)
	if err != nil {
		return nil, nil, err
	}
	repo, err := history.NewRepository(&history.Config{DB: db})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, db, nil
}

// runHistory 打印最近的生成记录
func runHistory() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	quiet := log.New(io.Discard)
	cfg.History.Enabled = true
	repo, db, err := openHistory(context.Background(), cfg, quiet)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := repo.Recent(context.Background(), 20)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("还没有生成记录"))
		return nil
	}

	head := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	for _, r := range records {
		fmt.Printf("%s  %s\n", head.Render(r.CreatedAt.Format("2006-01-02 15:04:05")), r.Path)
		fmt.Printf("    %q seed=%d sampler=%s steps=%d cfg=%d %dx%d\n",
			r.Prompt, r.Seed, r.Sampler, r.NumSteps, r.GuidanceScale, r.Width, r.Height)
	}
	return nil
}

func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

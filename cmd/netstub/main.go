// netstub CLI - 启动拦截会话并按路由文件注册存根
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"netstub/internal/config"
	"netstub/internal/logger"
	"netstub/internal/storage"
	"netstub/pkg/api"
	"netstub/pkg/domain"
	"netstub/pkg/stub"
)

var version = "dev"

// routeFile 路由文件结构
type routeFile struct {
	Routes []routeEntry `yaml:"routes"`
}

// routeEntry 一条路由声明：matcher 支持 URL 字符串或结构化字段
type routeEntry struct {
	Alias       string               `yaml:"alias"`
	Matcher     any                  `yaml:"matcher"`
	Response    *stub.StaticResponse `yaml:"response"`
	Passthrough bool                 `yaml:"passthrough"`
}

type runFlags struct {
	configPath string
	routesPath string
	devtools   string
	target     string
}

var runFlagVals runFlags

var rootCmd = &cobra.Command{
	Use:     "netstub",
	Short:   "Network stubbing for browser-driven tests over CDP",
	Version: version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interception session and register routes from a file",
	Example: `  # Stub routes from a file against a local headless Chrome
  netstub run --routes routes.yaml --devtools http://127.0.0.1:9222`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringVarP(&runFlagVals.configPath, "config", "c", "", "Path to config file (YAML)")
	runCmd.Flags().StringVarP(&runFlagVals.routesPath, "routes", "r", "", "Path to route declarations (YAML) [required]")
	runCmd.Flags().StringVar(&runFlagVals.devtools, "devtools", "", "DevTools HTTP endpoint (overrides config)")
	runCmd.Flags().StringVar(&runFlagVals.target, "target", "", "Debug target id (default: first page)")
	_ = runCmd.MarkFlagRequired("routes")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSession(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(runFlagVals.configPath)
	if err != nil {
		return err
	}
	if runFlagVals.devtools != "" {
		cfg.Session.DevToolsURL = runFlagVals.devtools
	}
	if runFlagVals.target != "" {
		cfg.Session.Target = runFlagVals.target
	}

	l := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})

	routes, err := loadRoutes(runFlagVals.routesPath)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := api.NewService(l)
	sid, err := svc.StartSession(domain.SessionConfig{
		DevToolsURL:           cfg.Session.DevToolsURL,
		Target:                cfg.Session.Target,
		Concurrency:           cfg.Session.Concurrency,
		RegistrationTimeoutMS: cfg.Session.RegistrationTimeoutMS,
	})
	if err != nil {
		return err
	}
	defer func() { _ = svc.StopSession(sid) }()

	for i, rt := range routes.Routes {
		var handler any
		if !rt.Passthrough && rt.Response != nil {
			handler = rt.Response
		}
		id, err := svc.RegisterAs(sid, rt.Alias, rt.Matcher, handler)
		if err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
		l.Info("路由就绪", "handler", string(id), "alias", rt.Alias)
	}

	events, err := svc.SubscribeEvents(sid)
	if err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	l.Info("会话运行中，Ctrl+C 退出", "session", string(sid))
	for {
		select {
		case <-sig:
			l.Info("收到退出信号，拆除会话")
			return nil
		case ev := <-events:
			if err := store.SaveEvent(ev); err != nil {
				l.Err(err, "流水落库失败", "correlation", string(ev.Correlation))
			}
			switch ev.Type {
			case domain.EventRequestResolved:
				l.Info("请求终结", "handler", string(ev.Handler), "url", ev.URL, "outcome", string(ev.Outcome), "latencyMs", ev.LatencyMS)
			case domain.EventProtocolError:
				l.Error("协议异常", "handler", string(ev.Handler), "error", ev.Error)
			}
		}
	}
}

func loadRoutes(path string) (*routeFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rf routeFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, err
	}
	if len(rf.Routes) == 0 {
		return nil, fmt.Errorf("no routes in %s", path)
	}
	return &rf, nil
}

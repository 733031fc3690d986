package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/reqchat/internal/api"
	"github.com/kalambet/reqchat/internal/config"
	"github.com/kalambet/reqchat/internal/engine"
	"github.com/kalambet/reqchat/internal/ingest"
	"github.com/kalambet/reqchat/internal/ollama"
	"github.com/kalambet/reqchat/internal/oracle"
	"github.com/kalambet/reqchat/internal/session"
	"github.com/kalambet/reqchat/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the reqchat server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running reqchat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reqchat system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "reqchat.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "reqchat version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	timeout, err := cfg.OracleTimeout()
	if err != nil {
		return err
	}
	policy, err := cfg.MergePolicy()
	if err != nil {
		return err
	}
	if cfg.Server.APIToken == "" {
		slog.Warn("REQCHAT_API_TOKEN not set, API is unauthenticated")
	}

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("reqchat is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("reqchat is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.Detect(ctx, cfg.EngineConfig())
	if err != nil {
		return fmt.Errorf("detecting inference backend: %w", err)
	}
	if err := engine.EnsureReady(ctx, eng, cfg.Oracle.Model, os.Stderr); err != nil {
		return err
	}
	slog.Info("oracle ready", "backend", eng.Name(), "model", cfg.Oracle.Model)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()
	if n, err := store.RequeueRunningJobs(); err != nil {
		slog.Warn("requeueing interrupted jobs", "error", err)
	} else if n > 0 {
		slog.Info("requeued interrupted jobs", "count", n)
	}

	orc := oracle.New(eng, cfg.Oracle.Model, timeout)
	hub := api.NewHub()
	sessions, err := session.NewManager(store, orc, session.Options{
		Policy:    policy,
		CacheSize: cfg.Session.CacheSize,
		Publisher: hub,
	})
	if err != nil {
		return err
	}
	defer sessions.Close()

	handler := api.NewHandler(api.Deps{
		Sessions: sessions,
		Oracle:   orc,
		Uploads:  store,
		Hub:      hub,
		Token:    cfg.Server.APIToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	worker := ingest.NewWorker(store, sessions, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "reqchat listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Sessions: sessions, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("reqchat is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop reqchat (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to reqchat (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	provider := cfg.Oracle.Provider
	if provider == "" {
		provider = engine.ProviderOllama
	}
	printStatus("Oracle", "%s", provider)
	printStatus("Model", "%s", cfg.Oracle.Model)
	if provider == engine.ProviderOllama {
		base := cfg.Oracle.BaseURL
		if base == "" {
			base = ollama.DefaultBaseURL
		}
		ollamaResp, err := client.Get(base + "/api/version")
		if err != nil {
			printStatus("Ollama", "not running")
		} else {
			ollamaResp.Body.Close()
			printStatus("Ollama", "running at %s", base)
		}
	}

	if running {
		c := &apiClient{baseURL: serverURL, token: cfg.Server.APIToken, httpClient: client}
		if n, err := countSessions(c, 100); err == nil {
			printStatus("Sessions", "%s", countLabel(n, 100))
		}
	}

	printStatus("Merge policy", "%s", cfg.Session.MergePolicy)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countSessions(c *apiClient, limit int) (int, error) {
	resp, err := c.get(context.Background(), fmt.Sprintf("/api/sessions?limit=%d", limit))
	if err != nil {
		return 0, err
	}
	var sessions []json.RawMessage
	if err := decodeJSON(resp, &sessions); err != nil {
		return 0, err
	}
	return len(sessions), nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}

// Command pagemap snapshots web pages into locator-addressed element maps.
//
// Usage:
//
//	pagemap -url https://example.com                 # one snapshot as JSON on stdout
//	pagemap -url https://example.com -format prompt  # numbered listing for prompts
//	pagemap -file page.html -resolve /html/body/main # resolve a locator in a local file
//	pagemap -config pagemap.yaml -serve              # HTTP API and MCP over HTTP
//	pagemap -config pagemap.yaml -serve -mcp-quic :9444  # plus MCP over QUIC
//	pagemap -config pagemap.yaml -mcp-stdio          # MCP over stdin/stdout
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domsight/mcpquic"
	"github.com/hazyhaar/domsight/pagemap"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to pagemap.yaml config file")
	pageURL := flag.String("url", "", "snapshot a single URL and exit")
	file := flag.String("file", "", "snapshot a local HTML file and exit")
	stealth := flag.String("stealth", "auto", "stealth level for -url: auto, 0, 1, 2")
	resolve := flag.String("resolve", "", "resolve a locator instead of printing the snapshot")
	format := flag.String("format", "json", "snapshot output: json, prompt, markdown")
	serve := flag.Bool("serve", false, "serve the HTTP API with MCP at /mcp")
	mcpStdio := flag.Bool("mcp-stdio", false, "serve MCP over stdin/stdout")
	quicAddr := flag.String("mcp-quic", "", "with -serve, also serve MCP over QUIC on this UDP address")
	tlsCert := flag.String("tls-cert", "", "TLS certificate for -mcp-quic (self-signed when empty)")
	tlsKey := flag.String("tls-key", "", "TLS key for -mcp-quic")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("pagemap: fatal", "error", err)
		os.Exit(1)
	}

	e, err := pagemap.New(cfg, pagemap.WithLogger(logger))
	if err != nil {
		logger.Error("pagemap: fatal", "error", err)
		os.Exit(1)
	}
	defer e.Close()

	switch {
	case *pageURL != "" || *file != "":
		err = runOnce(ctx, e, *pageURL, *file, *stealth, *resolve, *format)
	case *serve:
		err = runServe(ctx, logger, e, cfg.Server.Addr, quicOptions{addr: *quicAddr, cert: *tlsCert, key: *tlsKey})
	case *mcpStdio:
		err = runStdio(ctx, e)
	default:
		fmt.Fprintln(os.Stderr, "usage: pagemap -url <url> | -file <path> | -serve | -mcp-stdio [-config <file>]")
		os.Exit(2)
	}
	if err != nil {
		logger.Error("pagemap: fatal", "error", err)
		e.Close()
		os.Exit(1)
	}
}

func loadConfig(path string) (*pagemap.Config, error) {
	if path == "" {
		return pagemap.ParseConfig([]byte("{}"))
	}
	cfg, err := pagemap.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runOnce(ctx context.Context, e *pagemap.Engine, pageURL, file, stealth, loc, format string) error {
	var (
		info *pagemap.PageInfo
		err  error
	)
	if file != "" {
		data, rerr := os.ReadFile(file)
		if rerr != nil {
			return rerr
		}
		info, err = e.OpenHTML("", pageURL, string(data))
	} else {
		info, err = e.OpenPage(ctx, pagemap.PageConfig{URL: pageURL, StealthLevel: stealth})
	}
	if err != nil {
		return err
	}

	if loc != "" {
		res, err := e.Resolve(ctx, info.ID, loc)
		if err != nil {
			return err
		}
		return printJSON(res)
	}

	snap, err := e.Snapshot(ctx, info.ID, e.DefaultConfig())
	if err != nil {
		return err
	}
	switch format {
	case "prompt", "markdown":
		text, err := e.Prompt(info.ID, format == "markdown")
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(os.Stdout, text)
		return err
	}
	return printJSON(snap)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMCPServer(e *pagemap.Engine) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "pagemap", Version: version}, nil)
	e.RegisterMCP(srv)
	return srv
}

func runStdio(ctx context.Context, e *pagemap.Engine) error {
	e.Start(ctx)
	err := newMCPServer(e).Run(ctx, &mcp.StdioTransport{})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

type quicOptions struct {
	addr, cert, key string
}

func runServe(ctx context.Context, logger *slog.Logger, e *pagemap.Engine, addr string, q quicOptions) error {
	e.Start(ctx)

	mcpSrv := newMCPServer(e)
	if q.addr != "" {
		if err := serveQUIC(ctx, logger, mcpSrv, q); err != nil {
			return err
		}
	}
	r := e.Router()
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("pagemap: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("pagemap: shutdown", "error", err)
	}
	logger.Info("pagemap: server stopped")
	return nil
}

func serveQUIC(ctx context.Context, logger *slog.Logger, mcpSrv *mcp.Server, q quicOptions) error {
	var (
		tlsCfg *tls.Config
		err    error
	)
	if q.cert != "" && q.key != "" {
		tlsCfg, err = mcpquic.ServerTLSConfig(q.cert, q.key)
	} else {
		tlsCfg, err = mcpquic.SelfSignedTLSConfig()
	}
	if err != nil {
		return err
	}
	l, err := mcpquic.NewListener(q.addr, tlsCfg, mcpSrv, logger)
	if err != nil {
		return fmt.Errorf("mcp quic listen: %w", err)
	}
	go func() {
		if err := l.Serve(ctx); err != nil && ctx.Err() == nil {
			logger.Error("pagemap: mcp quic", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	return nil
}

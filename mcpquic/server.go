package mcpquic

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/quic-go/quic-go"

	"github.com/hazyhaar/domsight/idgen"
	"github.com/hazyhaar/domsight/kit"
)

// Handler serves MCP sessions on accepted QUIC connections.
type Handler struct {
	mcpServer *mcp.Server
	logger    *slog.Logger
	newID     idgen.Generator
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerIDGenerator sets the session ID generator.
func WithHandlerIDGenerator(gen idgen.Generator) HandlerOption {
	return func(h *Handler) { h.newID = gen }
}

// NewHandler creates a Handler for mcpSrv.
func NewHandler(mcpSrv *mcp.Server, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		mcpServer: mcpSrv,
		logger:    logger,
		newID:     idgen.Prefixed("quic_", idgen.UUIDv7()),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ServeConn runs one MCP session on the first stream of conn and returns
// when the session ends.
func (h *Handler) ServeConn(ctx context.Context, conn *quic.Conn) {
	remote := conn.RemoteAddr().String()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		h.logger.Warn("mcpquic: accept stream failed", "remote", remote, "error", err)
		conn.CloseWithError(ConnErrorProtocolViolation, "stream accept failed")
		return
	}
	if err := ValidateMagicBytes(stream); err != nil {
		h.logger.Warn("mcpquic: bad preamble", "remote", remote, "error", err)
		stream.CancelWrite(StreamErrorProtocolConfusion)
		stream.CancelRead(StreamErrorProtocolConfusion)
		conn.CloseWithError(ConnErrorProtocolViolation, "invalid magic bytes")
		return
	}

	sessionID := h.newID()
	ctx = kit.WithTransport(ctx, "mcp_quic")
	ctx = kit.WithRequestID(ctx, sessionID)

	ss, err := h.mcpServer.Connect(ctx, &serverTransport{stream: stream, sessionID: sessionID}, nil)
	if err != nil {
		h.logger.Error("mcpquic: connect failed", "session", sessionID, "error", err)
		stream.Close()
		return
	}
	h.logger.Info("mcpquic: session started", "session", sessionID, "remote", remote)
	if err := ss.Wait(); err != nil {
		h.logger.Debug("mcpquic: session wait", "session", sessionID, "error", err)
	}
	h.logger.Info("mcpquic: session ended", "session", sessionID, "remote", remote)
}

// Listener accepts QUIC connections and hands each to a Handler.
type Listener struct {
	listener *quic.Listener
	handler  *Handler
	logger   *slog.Logger
}

// NewListener binds addr (UDP).
func NewListener(addr string, tlsCfg *tls.Config, mcpSrv *mcp.Server, logger *slog.Logger, opts ...HandlerOption) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l, err := quic.ListenAddr(addr, tlsCfg, ProductionQUICConfig())
	if err != nil {
		return nil, err
	}
	logger.Info("mcpquic: listening", "addr", l.Addr().String())
	return &Listener{
		listener: l,
		handler:  NewHandler(mcpSrv, logger, opts...),
		logger:   logger,
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.listener.Addr() }

// Serve accepts connections until ctx is done or the listener is closed.
func (l *Listener) Serve(ctx context.Context) error {
	for {
		conn, err := l.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, quic.ErrServerClosed) {
				return err
			}
			l.logger.Warn("mcpquic: accept", "error", err)
			continue
		}
		if alpn := conn.ConnectionState().TLS.NegotiatedProtocol; alpn != ALPNProtocolMCP {
			conn.CloseWithError(ConnErrorUnsupportedALPN, "unsupported ALPN: "+alpn)
			continue
		}
		go l.handler.ServeConn(ctx, conn)
	}
}

func (l *Listener) Close() error {
	return l.listener.Close()
}

// serverTransport is an mcp.Transport over one accepted stream.
type serverTransport struct {
	stream    *quic.Stream
	sessionID string
}

func (t *serverTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	iot := &mcp.IOTransport{
		Reader: io.NopCloser(t.stream),
		Writer: streamWriteCloser{t.stream},
	}
	conn, err := iot.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &sessionConn{Connection: conn, id: t.sessionID}, nil
}

// sessionConn reports the handler's session ID instead of the empty one
// IOTransport connections carry.
type sessionConn struct {
	mcp.Connection
	id string
}

func (c *sessionConn) SessionID() string { return c.id }

type streamWriteCloser struct{ stream *quic.Stream }

func (w streamWriteCloser) Write(p []byte) (int, error) { return w.stream.Write(p) }
func (w streamWriteCloser) Close() error                { return w.stream.Close() }

// ABOUTME: The persistent connection endpoint: WebSocket upgrade, metadata
// ABOUTME: extraction, the sequential read loop, and the heartbeat prober.

package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/conclave-mesh/conclave-gateway/internal/auth"
	"github.com/conclave-mesh/conclave-gateway/internal/ratelimit"
	"github.com/conclave-mesh/conclave-gateway/internal/session"
)

// handleConnect upgrades the request and runs the connection to completion.
// One request is handled at a time per connection, so responses are emitted
// in request order.
func (g *Gateway) handleConnect(w http.ResponseWriter, r *http.Request) {
	md := g.extractMetadata(r)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(g.config.Server.MaxMessageBytes)

	sess := session.New(md, g.newSessionLimiter())
	if err := g.sessions.Register(sess); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "session registration failed")
		return
	}
	defer g.sessions.Unregister(sess.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go g.probeLiveness(ctx, conn, sess, cancel)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Transport fault or liveness close: fatal to this connection
			// only, the server keeps serving everyone else.
			g.logger.Debug("connection read ended", "session_id", sess.ID, "error", err)
			return
		}
		// While a request is being dispatched no Read is pending, so pongs
		// go unprocessed; the prober stands down until EndRequest.
		sess.BeginRequest()
		resp := g.router.Dispatch(ctx, sess, data)
		err = conn.Write(ctx, websocket.MessageText, resp)
		sess.EndRequest()
		if err != nil {
			g.logger.Debug("connection write failed", "session_id", sess.ID, "error", err)
			return
		}
	}
}

// extractMetadata derives connection metadata. A valid bearer trust token
// wins; an absent or invalid token falls back to header extraction with its
// documented defaults.
func (g *Gateway) extractMetadata(r *http.Request) session.Metadata {
	md := session.FromHeader(r.Header)

	if g.verifier == nil {
		return md
	}
	token, errMsg := auth.BearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		return md
	}

	claims, err := g.verifier.Verify(token)
	if err != nil {
		g.logger.Debug("bearer token rejected, falling back to headers", "error", err)
		return md
	}

	md.Identity = claims.Identity
	md.Trust = claims.Trust
	md.AuthMethod = session.AuthMethodToken
	return md
}

// newSessionLimiter returns the limiter a new session should count against:
// the shared redis limiter when configured, otherwise nil so the session
// owns a fresh in-process one that dies with the connection.
func (g *Gateway) newSessionLimiter() ratelimit.Limiter {
	return g.sharedLimiter
}

// probeLiveness pings the connection every heartbeat interval, with the
// interval itself as the ack deadline. An unacknowledged probe terminates
// the connection, bounding half-open detection to roughly twice the
// interval.
//
// Pongs are processed by the reader goroutine's pending Read, which is not
// pending while a request is being dispatched. The prober therefore skips
// probing while a request is in flight and never terminates a connection
// that showed activity (or went busy) since the probe was sent: an unread
// pong is not a dead peer.
func (g *Gateway) probeLiveness(ctx context.Context, conn *websocket.Conn, sess *session.Session, cancel context.CancelFunc) {
	interval := g.config.Server.HeartbeatInterval

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if sess.InFlight() {
			continue
		}

		sentAt := time.Now().UTC()
		pingCtx, pingCancel := context.WithTimeout(ctx, interval)
		err := conn.Ping(pingCtx)
		pingCancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if sess.InFlight() || sess.LastActive().After(sentAt) {
				continue
			}
			g.logger.Info("heartbeat unacknowledged, terminating connection",
				"session_id", sess.ID,
				"identity", sess.Identity,
				"last_active", sess.LastActive(),
			)
			_ = conn.Close(websocket.StatusPolicyViolation, "heartbeat timeout")
			cancel()
			return
		}
		sess.Touch()
	}
}

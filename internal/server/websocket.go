package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Amr-9/btcvanity/internal/job"
	"github.com/Amr-9/btcvanity/internal/store"
	"github.com/Amr-9/btcvanity/pkg/generator/bitcoin"
	"github.com/Amr-9/btcvanity/pkg/generator/cpu"
)

const (
	// PingContent is the payload of keepalive pings.
	PingContent = "are you there?"

	// replyBuffer is the number of direct replies that may be queued for
	// the writer.
	replyBuffer = 16

	// writeWait bounds a single message write.
	writeWait = 10 * time.Second
)

// Client actions.
const (
	actionStart  = "start"
	actionPause  = "pause"
	actionResume = "resume"
	actionStop   = "stop"
)

// Server message types.
const (
	msgStatus    = "status"
	msgInfo      = "info"
	msgProgress  = "progress"
	msgSuccess   = "success"
	msgNotFound  = "not_found"
	msgCancelled = "cancelled"
	msgError     = "error"
)

// clientMessage is a command received from a WebSocket client. Start
// carries the search request inline.
type clientMessage struct {
	Action string `json:"action"`
	searchRequest
}

// serverMessage is sent to WebSocket clients.
type serverMessage struct {
	Type           string   `json:"type"`
	Message        string   `json:"message,omitempty"`
	JobID          uint64   `json:"job_id,omitempty"`
	Address        string   `json:"address,omitempty"`
	PrivateKey     string   `json:"private_key,omitempty"`
	Attempts       uint64   `json:"attempts,omitempty"`
	CurrentAddress string   `json:"current_address,omitempty"`
	Rate           float64  `json:"rate,omitempty"`
	Elapsed        float64  `json:"elapsed,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// wsSession serves one WebSocket connection. The read loop handles client
// commands and the write loop is the only writer on conn.
type wsSession struct {
	server  *Server
	conn    *websocket.Conn
	session *Session

	replies    chan serverMessage
	writerQuit chan struct{}
	quit       chan struct{}

	// started holds the start time of jobs whose terminal event has not
	// been seen yet. early holds terminal events the writer saw before
	// start recorded the job.
	mu      sync.Mutex
	started map[uint64]time.Time
	early   map[uint64]job.Event
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied with an HTTP error.
		log.Debugf("WebSocket upgrade from %s failed: %v",
			r.RemoteAddr, err)
		return
	}

	controller := job.NewController(job.Config{Searcher: s.cfg.Searcher})
	sess := s.sessions.Open(r.RemoteAddr, controller)
	s.cfg.Metrics.SessionOpened()

	ctx := r.Context()
	log.InfoS(ctx, "WebSocket session opened",
		slog.String("session", sess.ID.String()),
		slog.String("remote", r.RemoteAddr))

	ws := &wsSession{
		server:     s,
		conn:       conn,
		session:    sess,
		replies:    make(chan serverMessage, replyBuffer),
		writerQuit: make(chan struct{}),
		quit:       make(chan struct{}),
		started:    make(map[uint64]time.Time),
		early:      make(map[uint64]job.Event),
	}
	ws.serve(ctx)

	log.InfoS(ctx, "WebSocket session closed",
		slog.String("session", sess.ID.String()))
}

// serve runs the session until the client disconnects or the server closes
// the session.
func (ws *wsSession) serve(ctx context.Context) {
	s := ws.server

	ws.conn.SetReadLimit(maxBodyBytes)
	initialDeadline := time.Now().Add(s.cfg.PingInterval + s.cfg.PongWait)
	_ = ws.conn.SetReadDeadline(initialDeadline)
	ws.conn.SetPongHandler(func(string) error {
		nextDeadline := time.Now().Add(
			s.cfg.PingInterval + s.cfg.PongWait,
		)
		return ws.conn.SetReadDeadline(nextDeadline)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ws.writeLoop(ctx)
	}()

	ws.readLoop(ctx)

	// Closing the session stops its job and closes the event stream, which
	// ends the write loop.
	close(ws.quit)
	s.sessions.Close(ws.session.ID)
	wg.Wait()
	_ = ws.conn.Close()

	ws.mu.Lock()
	for id, started := range ws.started {
		s.cfg.Metrics.JobFinished(
			job.EventCancelled.String(), time.Since(started),
		)
		delete(ws.started, id)
	}
	ws.mu.Unlock()

	s.cfg.Metrics.SessionClosed()
}

// readLoop handles client commands until the connection fails.
func (ws *wsSession) readLoop(ctx context.Context) {
	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {

				log.Debugf("WebSocket read from %s ended: %v",
					ws.session.RemoteAddr, err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			ws.reply(errorMessage(fmt.Errorf("invalid message: %w",
				err)))
			continue
		}

		ws.handle(ctx, &msg)
	}
}

// handle executes one client command.
func (ws *wsSession) handle(ctx context.Context, msg *clientMessage) {
	controller := ws.session.Controller

	switch msg.Action {
	case actionStart:
		ws.start(ctx, msg)

	case actionPause:
		if err := controller.Pause(); err != nil {
			ws.reply(errorMessage(err))
			return
		}
		ws.reply(serverMessage{Type: msgStatus, Message: "paused"})

	case actionResume:
		if err := controller.Resume(); err != nil {
			ws.reply(errorMessage(err))
			return
		}
		ws.reply(serverMessage{Type: msgStatus, Message: "resumed"})

	case actionStop:
		if err := controller.Stop(); err != nil {
			ws.reply(errorMessage(err))
			return
		}
		ws.reply(serverMessage{Type: msgStatus, Message: "stopped"})

	default:
		ws.reply(errorMessage(fmt.Errorf("unknown action %q",
			msg.Action)))
	}
}

// start validates the request and launches it on the session controller,
// superseding any running job.
func (ws *wsSession) start(ctx context.Context, msg *clientMessage) {
	s := ws.server

	req, err := msg.toRequest()
	if err != nil {
		ws.reply(errorMessage(err))
		return
	}

	warnings := bitcoin.PatternWarnings(req.Pattern, req.Format, req.Position)
	if len(warnings) > 0 {
		ws.reply(serverMessage{
			Type:     msgInfo,
			Message:  "pattern may never match",
			Warnings: warnings,
		})
	}

	strategy := cpu.SelectStrategy(req.Pattern, s.cfg.ParallelThreshold)
	if strategy == cpu.StrategyParallel {
		ws.reply(serverMessage{
			Type:    msgInfo,
			Message: "using parallel workers for a long pattern",
		})
	}

	id, err := ws.session.Controller.Start(req)
	if err != nil {
		ws.reply(errorMessage(err))
		return
	}
	ws.track(id, time.Now())

	log.DebugS(ctx, "WebSocket job started",
		slog.String("session", ws.session.ID.String()),
		slog.Uint64("job_id", id),
		slog.String("strategy", strategy.String()))

	ws.reply(serverMessage{
		Type:    msgStatus,
		Message: "started",
		JobID:   id,
	})
}

// reply queues a direct response for the writer. It is dropped if the
// writer has gone away.
func (ws *wsSession) reply(msg serverMessage) {
	select {
	case ws.replies <- msg:
	case <-ws.writerQuit:
	}
}

// writeLoop forwards controller events and replies to the client and keeps
// the connection alive with pings.
func (ws *wsSession) writeLoop(ctx context.Context) {
	defer close(ws.writerQuit)

	s := ws.server
	events := ws.session.Controller.Events()

	pinger := time.NewTicker(s.cfg.PingInterval)
	defer pinger.Stop()

	for {
		var msg serverMessage
		select {
		case ev, ok := <-events:
			if !ok {
				// The session was closed by the server, so the
				// read loop is unblocked too.
				_ = ws.conn.Close()
				return
			}
			msg = ws.eventMessage(ctx, ev)

		case msg = <-ws.replies:

		case <-pinger.C:
			deadline := time.Now().Add(s.cfg.PongWait)
			err := ws.conn.WriteControl(
				websocket.PingMessage, []byte(PingContent),
				deadline,
			)
			if err != nil {
				log.Debugf("Unable to ping %s: %v",
					ws.session.RemoteAddr, err)
				_ = ws.conn.Close()
				return
			}
			continue

		case <-ws.quit:
			return
		}

		_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.conn.WriteJSON(msg); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				log.Debugf("Unable to write to %s: %v",
					ws.session.RemoteAddr, err)
			}

			// Unblock the read loop so the session is torn down.
			_ = ws.conn.Close()
			return
		}
	}
}

// eventMessage converts a controller event into a client message and
// records terminal events.
func (ws *wsSession) eventMessage(ctx context.Context,
	ev job.Event) serverMessage {

	stats := ev.Stats()
	msg := serverMessage{
		JobID:    ev.JobID,
		Attempts: ev.Attempts,
		Elapsed:  stats.ElapsedSecs,
		Rate:     stats.HashRate,
		Message:  ev.Note,
	}

	switch ev.Type {
	case job.EventProgress:
		msg.Type = msgProgress
		msg.CurrentAddress = ev.Sample
		return msg

	case job.EventFound:
		msg.Type = msgSuccess
		msg.Address = ev.Result.Address
		msg.PrivateKey = ev.Result.PrivateKey
		ws.server.saveResult(
			ctx, ev.Result, ev.Request, store.SourceWebSocket,
		)

	case job.EventNotFound:
		msg.Type = msgNotFound

	case job.EventCancelled:
		msg.Type = msgCancelled

	default:
		msg.Type = msgError
	}

	ws.finished(ev)

	return msg
}

// track records a started job. A terminal event that already reached the
// writer is booked right away.
func (ws *wsSession) track(id uint64, started time.Time) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.server.cfg.Metrics.JobStarted()

	if ev, ok := ws.early[id]; ok {
		delete(ws.early, id)
		ws.record(ev)
		return
	}
	ws.started[id] = started
}

// finished records metrics for a terminal event. It does not wait for
// start to record the job.
func (ws *wsSession) finished(ev job.Event) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if _, ok := ws.started[ev.JobID]; !ok {
		ws.early[ev.JobID] = ev
		return
	}
	delete(ws.started, ev.JobID)
	ws.record(ev)
}

// record books a finished job.
//
// NOTE: ws.mu must be held.
func (ws *wsSession) record(ev job.Event) {
	metrics := ws.server.cfg.Metrics
	metrics.AddAttempts(ev.Attempts)
	metrics.JobFinished(ev.Type.String(), ev.Elapsed)
}

func errorMessage(err error) serverMessage {
	return serverMessage{Type: msgError, Message: err.Error()}
}

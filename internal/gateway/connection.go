package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/typerace-go/internal/hub"
	"github.com/mcoot/typerace-go/internal/model"
)

// Connection is one websocket client. Its race membership is only touched by the read pump.
type Connection struct {
	id          model.ConnectionID
	conn        *websocket.Conn
	client      *hub.Client
	gateway     *Gateway
	raceID      model.RaceID
	done        chan struct{}
	connectedAt time.Time
}

// progressPayload accepts fractional values as sent by browsers
type progressPayload struct {
	Progress *float64 `json:"progress"`
	WPM      *float64 `json:"wpm"`
	Finished bool     `json:"finished"`
}

func (p progressPayload) toUpdate() (model.ProgressUpdate, error) {
	if p.Progress == nil {
		return model.ProgressUpdate{}, fmt.Errorf("%w: progress is required", model.ErrInvalidProgress)
	}
	update := model.ProgressUpdate{
		Progress: int(math.Round(*p.Progress)),
		Finished: p.Finished,
	}
	if p.WPM != nil {
		update.WPM = int(math.Round(*p.WPM))
	}
	return update, nil
}

// readPump handles incoming messages until the socket fails, then cleans up
func (c *Connection) readPump() {
	g := c.gateway
	defer func() {
		g.leave(c)
		g.removeConnection(c)
		close(c.done)
		_ = c.conn.Close()
		g.wg.Done()

		g.logger.Info("websocket connection closed",
			slog.String("connection_id", string(c.id)),
			slog.Duration("connection_duration", time.Since(c.connectedAt)))
	}()

	c.conn.SetReadLimit(g.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(g.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(g.config.ReadTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				g.logger.Warn("unexpected websocket close",
					slog.String("connection_id", string(c.id)),
					slog.Any("error", err))
			}
			return
		}

		if err := c.handleMessage(message); err != nil {
			g.logger.Debug("rejected client message",
				slog.String("connection_id", string(c.id)),
				slog.Any("error", err))
			c.sendError(err)
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(g.config.ReadTimeout))
	}
}

// handleMessage dispatches one inbound envelope
func (c *Connection) handleMessage(message []byte) error {
	var env model.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return fmt.Errorf("malformed message: %w", err)
	}

	switch env.Type {
	case model.EventJoinRace:
		var payload model.JoinRacePayload
		if err := decodeData(env.Data, &payload); err != nil {
			return err
		}
		return c.gateway.join(c, payload)

	case model.EventLeaveRace:
		c.gateway.leave(c)
		return nil

	case model.EventUpdateProgress:
		var payload progressPayload
		if err := decodeData(env.Data, &payload); err != nil {
			return fmt.Errorf("%w: %w", model.ErrInvalidProgress, err)
		}
		update, err := payload.toUpdate()
		if err != nil {
			return err
		}
		return c.gateway.updateProgress(c, update)

	default:
		return fmt.Errorf("%w: %q", model.ErrUnknownEvent, env.Type)
	}
}

// decodeData tolerates a missing data field
func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("malformed message data: %w", err)
	}
	return nil
}

// sendError reports a failure to this connection only
func (c *Connection) sendError(err error) {
	msg, encErr := hub.NewMessage(model.EventError, model.ErrorPayload{Message: errorMessage(err)})
	if encErr != nil {
		return
	}
	if !c.client.Deliver(msg) {
		c.gateway.logger.Warn("error message dropped - client buffer full",
			slog.String("connection_id", string(c.id)))
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrTextsNotLoaded):
		return "no race texts are available"
	default:
		return err.Error()
	}
}

// writePump writes queued messages and keepalive pings to the socket
func (c *Connection) writePump() {
	g := c.gateway
	ticker := time.NewTicker(g.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		g.wg.Done()
	}()

	for {
		select {
		case message := <-c.client.Messages():
			_ = c.conn.SetWriteDeadline(time.Now().Add(g.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message.Payload); err != nil {
				g.logger.Debug("failed to write message",
					slog.String("connection_id", string(c.id)),
					slog.Any("error", err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(g.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(g.config.WriteTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jmehdipour/wa-notifier/internal/logger"
	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/jmehdipour/wa-notifier/internal/session"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type sessionView struct {
	Ready  bool   `json:"ready"`
	QRCode string `json:"qr_code,omitempty"`
}

func sessionStatus(tr *session.Tracker) sessionView {
	url, _ := tr.QRCode()
	return sessionView{Ready: tr.Ready(), QRCode: url}
}

func sessionStatusHandler(tr *session.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, sessionStatus(tr))
	}
}

func sessionQRHandler(tr *session.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		png, ok := tr.QRPNG()
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "no pairing code"})
		}
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.Blob(http.StatusOK, "image/png", png)
	}
}

// sessionEventHandler receives lifecycle callbacks from the chat bridge.
func sessionEventHandler(tr *session.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		var ev model.SessionEvent
		if err := c.Bind(&ev); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if !ev.Type.Valid() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid type"})
		}
		if err := tr.Handle(ev); err != nil {
			logger.Log.Warn("session event rejected", zap.String("type", string(ev.Type)), zap.Error(err))
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid event"})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// sessionStreamHandler pushes the session state as server-sent events: once on connect
// and again after every lifecycle event.
func sessionStreamHandler(tr *session.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		events, cancel := tr.Subscribe(8)
		defer cancel()

		w := c.Response()
		w.Header().Set(echo.HeaderContentType, "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if err := writeSSE(w, "state", sessionStatus(tr)); err != nil {
			return nil
		}

		ctx := c.Request().Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if err := writeSSE(w, string(ev.Type), sessionStatus(tr)); err != nil {
					return nil
				}
			}
		}
	}
}

func writeSSE(w *echo.Response, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

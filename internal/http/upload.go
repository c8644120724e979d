package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/jmehdipour/wa-notifier/internal/logger"
	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/jmehdipour/wa-notifier/internal/service/broadcast"
	"github.com/jmehdipour/wa-notifier/internal/session"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	msgSuccess = "Messages sent successfully!"
	msgBadFile = "The file is empty or improperly formatted."
	msgFailed  = "An error occurred while processing the file."

	msgTooLarge = "The file is too large."
)

var (
	errNoFile  = errors.New("no file uploaded")
	errRelease = errors.New("release upload")
)

func indexHandler(mode string, tr *session.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		if mode == ModeJSON {
			return c.JSON(http.StatusOK, sessionStatus(tr))
		}
		return c.Render(http.StatusOK, "index.html", newPageView(tr))
	}
}

func uploadHandler(ctx context.Context, proc BatchProcessor, tr *session.Tracker, mode, dir string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var res model.BatchResult
		err := withUpload(c, dir, func(path string) error {
			var perr error
			res, perr = proc.Process(ctx, path)
			return perr
		})

		status, msg := classifyUpload(err)
		if status == http.StatusInternalServerError {
			logger.Log.Error("upload failed", zap.String("batch_id", res.ID), zap.Error(err))
		}

		if mode == ModeJSON {
			if status != http.StatusOK {
				return c.JSON(status, map[string]string{"error": msg})
			}
			return c.JSON(http.StatusOK, map[string]any{
				"message":  msg,
				"batch_id": res.ID,
				"total":    res.Total,
				"sent":     res.SentCount,
				"failed":   res.FailedCount,
				"failures": res.Failures(),
			})
		}

		view := newPageView(tr)
		if status == http.StatusOK {
			view.Success = msg
			view.Result = &res
		} else {
			view.Error = msg
		}
		return c.Render(status, "index.html", view)
	}
}

// uploadErrorHandler answers oversized uploads in the configured mode and leaves every
// other error to echo.
func uploadErrorHandler(e *echo.Echo, mode string, tr *session.Tracker) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var he *echo.HTTPError
		if c.Response().Committed || !errors.As(err, &he) || he.Code != http.StatusRequestEntityTooLarge {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}

		var rerr error
		if mode == ModeJSON {
			rerr = c.JSON(he.Code, map[string]string{"error": msgTooLarge})
		} else {
			view := newPageView(tr)
			view.Error = msgTooLarge
			rerr = c.Render(he.Code, "index.html", view)
		}
		if rerr != nil {
			logger.Log.Error("write error response", zap.Error(rerr))
		}
	}
}

func classifyUpload(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, msgSuccess
	case errors.Is(err, errRelease):
		return http.StatusInternalServerError, msgFailed
	case errors.Is(err, errNoFile), errors.Is(err, broadcast.ErrRejected):
		return http.StatusBadRequest, msgBadFile
	default:
		return http.StatusInternalServerError, msgFailed
	}
}

// withUpload stores the "file" form field in dir, runs fn on it and removes the copy on
// every path. A failed removal is reported as errRelease.
func withUpload(c echo.Context, dir string, fn func(path string) error) (err error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return fmt.Errorf("%w: %w", errNoFile, err)
	}

	path, err := storeUpload(fh, dir)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	defer func() {
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			err = errors.Join(err, fmt.Errorf("%w %s: %w", errRelease, path, rerr))
		}
	}()

	return fn(path)
}

func storeUpload(fh *multipart.FileHeader, dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

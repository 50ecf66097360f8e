package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid request body")

// decodeBody accepts a JSON body, then a url-encoded form, then whatever echo can bind
// from the declared content type. Clients send all three.
func decodeBody(c echo.Context, target any) error {
	req := c.Request()
	if req.Body == nil {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	_ = req.Body.Close()
	if err != nil {
		return errInvalidBody
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err == nil {
		return nil
	}

	contentType := req.Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, echo.MIMEMultipartForm) && looksLikeForm(raw) {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))
	req.ContentLength = int64(len(raw))
	if err := (&echo.DefaultBinder{}).BindBody(c, target); err != nil {
		return errInvalidBody
	}
	return nil
}

func looksLikeForm(raw []byte) bool {
	body := string(raw)
	if !strings.Contains(body, "=") {
		return false
	}
	values, err := url.ParseQuery(body)
	return err == nil && len(values) > 0
}

package webserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid request body")

const invalidBodyMessage = "Invalid request body."

// requestBody は型が合わないフィールドを「未指定」として扱うためのゆるいJSONボディ
type requestBody map[string]json.RawMessage

func decodeBody(r *http.Request) (requestBody, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errInvalidBody
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return requestBody{}, nil
	}

	var body requestBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, errInvalidBody
	}
	if body == nil {
		body = requestBody{}
	}
	return body, nil
}

// str returns the trimmed string field, or "" when missing or not a string.
func (b requestBody) str(key string) string {
	var v string
	if err := json.Unmarshal(b[key], &v); err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// boolean reports the field value and whether it was a JSON boolean.
func (b requestBody) boolean(key string) (bool, bool) {
	raw, ok := b[key]
	if !ok {
		return false, false
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, false
	}
	return v, true
}

// number accepts a JSON number or a numeric string. Anything else is NaN.
func (b requestBody) number(key string) float64 {
	raw, ok := b[key]
	if !ok {
		return math.NaN()
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

// deviceIDFromRequest はヘッダー優先でデバイスIDを取得する
func deviceIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(deviceIDHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("deviceId"))
}

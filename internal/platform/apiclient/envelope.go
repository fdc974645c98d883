package apiclient

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Envelope is the wrapper every backend response is delivered in:
//
//	{ "status": "OK", "code": 200, "message": "...", "data": ... }
//
// Some services send status as a number (the HTTP code); both forms decode.
type Envelope struct {
	Status  string          `json:"status"`
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`

	wrapped bool
}

type rawEnvelope struct {
	Status  json.RawMessage `json:"status"`
	Code    json.RawMessage `json:"code"`
	Message *string         `json:"message"`
	Error   *string         `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// UnmarshalJSON accepts string or numeric status/code fields. A body that
// carries none of the envelope fields is treated as bare data.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		e.Data = append(json.RawMessage(nil), trimmed...)
		return nil
	}

	var raw rawEnvelope
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}

	if raw.Status == nil && raw.Code == nil && raw.Data == nil && raw.Message == nil && raw.Error == nil {
		e.Data = append(json.RawMessage(nil), trimmed...)
		return nil
	}

	e.wrapped = true
	statusText, statusNum := flexible(raw.Status)
	codeText, codeNum := flexible(raw.Code)
	e.Status = statusText
	e.Code = codeNum
	if e.Code == 0 && codeText != "" {
		e.Code, _ = strconv.Atoi(codeText)
	}
	if e.Status == "" && statusNum != 0 && e.Code == 0 {
		e.Code = statusNum
	}
	switch {
	case raw.Message != nil:
		e.Message = *raw.Message
	case raw.Error != nil:
		e.Message = *raw.Error
	}
	e.Data = raw.Data
	return nil
}

// flexible decodes a JSON value that may be a string or a number.
func flexible(raw json.RawMessage) (string, int) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return "", int(n)
	}
	return "", 0
}

// OK reports whether the envelope signals success. This is the one place the
// portal decides success: status "OK"/"success" (any case), or code 200/201.
// A body without envelope fields counts as success since it arrived with a
// 2xx HTTP status.
func (e Envelope) OK() bool {
	if !e.wrapped {
		return true
	}
	if e.Status == "" && e.Code == 0 {
		return true
	}
	switch strings.ToLower(e.Status) {
	case "ok", "success":
		return true
	}
	return e.Code == 200 || e.Code == 201
}

// Decode unmarshals the data payload into out. Missing or null data leaves
// out untouched.
func (e Envelope) Decode(out any) error {
	if out == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, out)
}

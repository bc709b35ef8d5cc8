package omenium

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// envelope is the {"data": ...} wrapper most responses use.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// unwrap returns the payload inside a data envelope, or the body itself
// when it is not wrapped.
func unwrap(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return env.Data
	}
	return trimmed
}

// tokenFields are the names deployments use for the issued credential, in
// order of preference.
var tokenFields = []string{"accessToken", "token", "access_token"}

func extractToken(body []byte) (string, error) {
	for _, raw := range []json.RawMessage{unwrap(body), bytes.TrimSpace(body)} {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		for _, name := range tokenFields {
			var s string
			if v, ok := m[name]; ok && json.Unmarshal(v, &s) == nil && s != "" {
				return s, nil
			}
		}
	}
	// Some deployments answer with a bare JSON string.
	var s string
	if err := json.Unmarshal(unwrap(body), &s); err == nil && s != "" {
		return s, nil
	}
	return "", fmt.Errorf("no token received from server")
}

type uploadResponse struct {
	Filename string `json:"filename"`
}

type errorBody struct {
	Message json.RawMessage `json:"message"`
	Fields  json.RawMessage `json:"fields"`
}

func decodeError(status int, body []byte) *domain.RemoteError {
	e := &domain.RemoteError{StatusCode: status, Body: string(body)}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return e
	}
	e.Message = messageText(eb.Message)
	if len(eb.Fields) > 0 {
		e.Fields = parseFieldIssues(eb.Fields)
	}
	return e
}

// messageText accepts a string message or a list of strings (joined).
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

// parseFieldIssues reads a {"field": issue} object keeping the server's
// key order. An issue is a list (first element used) or a single value; an
// object issue contributes its first value.
func parseFieldIssues(raw json.RawMessage) []domain.FieldIssue {
	keys, values, err := orderedObject(raw)
	if err != nil {
		return nil
	}
	out := make([]domain.FieldIssue, 0, len(keys))
	for i, k := range keys {
		out = append(out, domain.FieldIssue{Field: k, Issue: issueText(values[i])})
	}
	return out
}

func issueText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '[':
		var list []json.RawMessage
		if json.Unmarshal(raw, &list) != nil || len(list) == 0 {
			return ""
		}
		return issueText(list[0])
	case '{':
		_, values, err := orderedObject(raw)
		if err != nil || len(values) == 0 {
			return ""
		}
		return scalarText(values[0])
	default:
		return scalarText(raw)
	}
}

func scalarText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	if string(bytes.TrimSpace(raw)) == "null" {
		return ""
	}
	return string(bytes.TrimSpace(raw))
}

// orderedObject splits a JSON object into keys and raw values in document
// order.
func orderedObject(raw json.RawMessage) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object")
	}
	var (
		keys   []string
		values []json.RawMessage
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected key")
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, v)
	}
	return keys, values, nil
}

// Package ipc handles communication between the daemon and the GUI over a
// local socket. Messages are newline-delimited JSON.
package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents the type of command
type CommandType string

const (
	CmdReadDirectory      CommandType = "readDirectory"
	CmdGetMp3Cover        CommandType = "getMp3Cover"
	CmdChangeRichPresence CommandType = "changeRichPresence"
	CmdGetSession         CommandType = "getSession"
	CmdSetSession         CommandType = "setSession"
	CmdNext               CommandType = "next"
	CmdPrev               CommandType = "prev"
	CmdStatus             CommandType = "status"
	CmdGetConfig          CommandType = "getConfig"
	CmdSetConfig          CommandType = "setConfig"

	// Event streaming
	CmdSubscribe   CommandType = "subscribe"
	CmdUnsubscribe CommandType = "unsubscribe"
)

// PushMessage represents a server-initiated message (no request needed)
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Request represents a client request
type Request struct {
	Cmd  CommandType     `json:"cmd"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response represents a server response
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ReadDirectoryRequest is the data for a readDirectory command
type ReadDirectoryRequest struct {
	DirectoryURL string `json:"directoryUrl"`
}

// CoverRequest is the data for a getMp3Cover command
type CoverRequest struct {
	Path string `json:"path"`
}

// CoverResponse tells the caller whether a cover event follows
type CoverResponse struct {
	Found bool `json:"found"`
}

// SubscribeResponse is the response to subscribe and unsubscribe
type SubscribeResponse struct {
	Subscribed bool `json:"subscribed"`
}

// CoverBytes encodes artwork as a list of numbers. The GUI builds its image
// blob from a plain byte array; encoding/json would base64 a []byte.
func CoverBytes(data []byte) []int {
	out := make([]int, len(data))
	for i, b := range data {
		out[i] = int(b)
	}
	return out
}

// EncodeRequest marshals req for the wire
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest parses one request line
func DecodeRequest(line []byte) (*Request, error) {
	req := &Request{}
	if err := json.Unmarshal(line, req); err != nil {
		return nil, fmt.Errorf("malformed request: %w", err)
	}
	return req, nil
}

// EncodeResponse marshals resp for the wire
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse parses one response line
func DecodeResponse(line []byte) (*Response, error) {
	resp := &Response{}
	if err := json.Unmarshal(line, resp); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	return resp, nil
}

// rawJSON marshals v, leaving nil as an absent field
func rawJSON(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// NewSuccessResponse wraps data in a successful response
func NewSuccessResponse(data interface{}) (*Response, error) {
	raw, err := rawJSON(data)
	if err != nil {
		return nil, err
	}
	return &Response{Success: true, Data: raw}, nil
}

// NewErrorResponse creates a failed response carrying msg
func NewErrorResponse(msg string) *Response {
	return &Response{Error: msg}
}

// NewPushMessage encodes an event for a subscribed client
func NewPushMessage(event string, data interface{}) ([]byte, error) {
	raw, err := rawJSON(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(PushMessage{Type: event, Data: raw})
}

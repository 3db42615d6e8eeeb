package ipc

import (
	"time"

	"github.com/rs/zerolog"
)

// quietCommands are polled by the GUI and only logged at trace level
var quietCommands = map[CommandType]bool{
	CmdStatus:     true,
	CmdGetSession: true,
}

// logExchange logs one request/response pair
func logExchange(log zerolog.Logger, req *Request, resp *Response, took time.Duration) {
	level := zerolog.DebugLevel
	if quietCommands[req.Cmd] {
		level = zerolog.TraceLevel
	}
	if !resp.Success {
		level = zerolog.WarnLevel
	}

	ev := log.WithLevel(level).
		Str("cmd", string(req.Cmd)).
		Bool("success", resp.Success).
		Dur("took", took)
	if resp.Error != "" {
		ev = ev.Str("error", resp.Error)
	}
	ev.Msg("command handled")
}

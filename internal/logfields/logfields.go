// Package logfields defines canonical slog field name constants and helpers
// so that field names do not drift across packages.
package logfields

import "log/slog"

const (
	KeyStage      = "stage"
	KeyTool       = "tool"
	KeyPath       = "path"
	KeyWorkspace  = "workspace"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
	KeyRequestID  = "request_id"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Tool(path string) slog.Attr       { return slog.String(KeyTool, path) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Workspace(dir string) slog.Attr   { return slog.String(KeyWorkspace, dir) }
func ExitCode(code int) slog.Attr      { return slog.Int(KeyExitCode, code) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }
func RequestID(id string) slog.Attr    { return slog.String(KeyRequestID, id) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Package logfields provides canonical log field names and helpers for structured logging in sentineld.
package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyDaemon       = "daemon"
	KeyPID          = "pid"
	KeyStatus       = "status"
	KeyAttempt      = "start_attempt"
	KeyFailedStarts = "failed_starts"
	KeyDurationMS   = "duration_ms"
	KeySourceURL    = "source_url"
	KeyPath         = "path"
	KeyBranch       = "branch"
	KeyMethod       = "method"
	KeyRoute        = "route"
	KeyRemoteAddr   = "remote_addr"
	KeyRequestID    = "request_id"
	KeyHTTPStatus   = "http_status"
	KeyInvitation   = "invitation"
	KeyToken        = "token_prefix"
	KeyError        = "error"
	KeyName         = "name"
)

func Daemon(name string) slog.Attr         { return slog.String(KeyDaemon, name) }
func PID(pid int) slog.Attr                { return slog.Int(KeyPID, pid) }
func Status(s string) slog.Attr            { return slog.String(KeyStatus, s) }
func Attempt(n int) slog.Attr              { return slog.Int(KeyAttempt, n) }
func FailedStarts(n int) slog.Attr         { return slog.Int(KeyFailedStarts, n) }
func DurationMS(ms float64) slog.Attr      { return slog.Float64(KeyDurationMS, ms) }
func SourceURL(u string) slog.Attr         { return slog.String(KeySourceURL, u) }
func Path(p string) slog.Attr              { return slog.String(KeyPath, p) }
func Branch(b string) slog.Attr            { return slog.String(KeyBranch, b) }
func Method(m string) slog.Attr            { return slog.String(KeyMethod, m) }
func Route(r string) slog.Attr             { return slog.String(KeyRoute, r) }
func RemoteAddr(a string) slog.Attr        { return slog.String(KeyRemoteAddr, a) }
func RequestID(id string) slog.Attr        { return slog.String(KeyRequestID, id) }
func HTTPStatus(code int) slog.Attr        { return slog.Int(KeyHTTPStatus, code) }
func Invitation(code string) slog.Attr     { return slog.String(KeyInvitation, code) }
func TokenPrefix(token string) slog.Attr {
	if len(token) > 8 {
		token = token[:8] + "…"
	}
	return slog.String(KeyToken, token)
}
func Name(n string) slog.Attr { return slog.String(KeyName, n) }

// Error returns a slog.Attr for an error, or an empty string if nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

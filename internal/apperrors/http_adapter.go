package apperrors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPAdapter maps SupervisorErrors onto the control API's HTTP responses.
type HTTPAdapter struct {
	logger *slog.Logger
}

func NewHTTPAdapter(logger *slog.Logger) *HTTPAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPAdapter{logger: logger}
}

// Response is the JSON error payload returned by the control API.
type Response struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// StatusCodeFor maps a category to the status code spec.md §6/§7 requires.
func (a *HTTPAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	se, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch se.Category() {
	case CategoryValidation, CategoryConfig:
		return http.StatusBadRequest
	case CategoryAccessDenied:
		return http.StatusForbidden
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryAlreadyRunning:
		return http.StatusConflict
	case CategoryNotRunning:
		return http.StatusConflict
	case CategoryTimeout:
		return http.StatusGatewayTimeout
	case CategoryRestartBudget:
		return http.StatusServiceUnavailable
	case CategoryProvisioning, CategoryEnvironment, CategoryIsolation, CategoryRuntime:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes the JSON error payload and logs at a level matching
// severity.
func (a *HTTPAdapter) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	status := a.StatusCodeFor(err)
	payload := a.format(err)

	body, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)

	if se, ok := As(err); ok {
		a.logger.LogAttrs(r.Context(), levelFor(se.Severity()), se.Message(),
			slog.String("category", string(se.Category())))
		return
	}
	a.logger.Error(err.Error())
}

func (a *HTTPAdapter) format(err error) Response {
	se, ok := As(err)
	if !ok {
		return Response{Error: err.Error()}
	}
	resp := Response{Error: se.Message(), Code: string(se.Category())}
	if len(se.Context()) > 0 {
		resp.Details = map[string]any(se.Context())
	}
	return resp
}

func levelFor(s Severity) slog.Level {
	switch s {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

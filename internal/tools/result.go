package tools

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Result is the uniform envelope every tool returns: {"success": bool, "data": ... | "error": "...", ...}. Extra
// holds tool-specific top-level fields such as a summary or pagination cursor
type Result struct {
	Success bool
	Data    any
	Error   string
	Extra   map[string]any
}

// Success creates a successful result. extra may be nil
func Success(data any, extra map[string]any) Result {
	return Result{Success: true, Data: data, Extra: extra}
}

func Failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Failuref creates a failed result with extra context fields
func Failuref(extra map[string]any, format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...), Extra: extra}
}

func (r Result) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Extra)+3)
	maps.Copy(m, r.Extra)
	m["success"] = r.Success
	if r.Success {
		m["data"] = r.Data
	} else {
		m["error"] = r.Error
	}
	return json.Marshal(m)
}

// String renders the envelope as the JSON text folded into the conversation
func (r Result) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, "failed to encode tool result: "+err.Error())
	}
	return string(b)
}

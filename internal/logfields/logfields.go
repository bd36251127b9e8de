package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyBranch     = "branch"
	KeyCommit     = "commit"
	KeyTool       = "tool"
	KeyFlag       = "flag"
	KeyArtifact   = "artifact"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Branch(b string) slog.Attr        { return slog.String(KeyBranch, b) }
func Commit(c string) slog.Attr        { return slog.String(KeyCommit, c) }
func Tool(t string) slog.Attr          { return slog.String(KeyTool, t) }
func Flag(f string) slog.Attr          { return slog.String(KeyFlag, f) }
func Artifact(a string) slog.Attr      { return slog.String(KeyArtifact, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RecognitionChanged is true when any recognizer setting changed
	// (strategy, fuzzy verbs, scan concurrency, vocabulary snapping or the
	// result cache). The recognizer is rebuilt on such a change.
	RecognitionChanged bool

	// RestartRequired lists the top-level sections that changed but cannot
	// be applied without a restart.
	RestartRequired []string
}

// Empty reports whether d carries no change at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.RecognitionChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldRec, newRec := old.Recognition, new.Recognition
	if oldRec.Strategy != newRec.Strategy ||
		oldRec.FuzzyVerbs != newRec.FuzzyVerbs ||
		oldRec.FuzzyThreshold != newRec.FuzzyThreshold ||
		oldRec.ScanConcurrency != newRec.ScanConcurrency ||
		oldRec.SnapToVocabulary != newRec.SnapToVocabulary ||
		oldRec.CacheSize != newRec.CacheSize || oldRec.CacheTTL != newRec.CacheTTL {
		d.RecognitionChanged = true
	}
	if oldRec.TemplatesDir != newRec.TemplatesDir || oldRec.ReloadInterval != newRec.ReloadInterval {
		d.RestartRequired = append(d.RestartRequired, "recognition")
	}

	oldSrv, newSrv := old.Server, new.Server
	if oldSrv.ListenAddr != newSrv.ListenAddr || oldSrv.LogFormat != newSrv.LogFormat ||
		oldSrv.ShutdownTimeout != newSrv.ShutdownTimeout || oldSrv.WSPingInterval != newSrv.WSPingInterval ||
		oldSrv.RateLimit != newSrv.RateLimit ||
		!sameTLS(oldSrv.TLS, newSrv.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !sameInference(old.Inference, new.Inference) {
		d.RestartRequired = append(d.RestartRequired, "inference")
	}
	if old.Sessions != new.Sessions {
		d.RestartRequired = append(d.RestartRequired, "sessions")
	}
	if old.Telemetry.ServiceName != new.Telemetry.ServiceName ||
		old.Telemetry.Metrics() != new.Telemetry.Metrics() {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}
	if old.MCP != new.MCP {
		d.RestartRequired = append(d.RestartRequired, "mcp")
	}
	return d
}

func sameTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameInference(a, b InferenceConfig) bool {
	if a.Timeout != b.Timeout || a.CircuitBreaker != b.CircuitBreaker {
		return false
	}
	if !sameBackend(a.Primary, b.Primary) || len(a.Fallbacks) != len(b.Fallbacks) {
		return false
	}
	for i := range a.Fallbacks {
		if !sameBackend(a.Fallbacks[i], b.Fallbacks[i]) {
			return false
		}
	}
	return true
}

func sameBackend(a, b BackendEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && reflect.DeepEqual(a.Options, b.Options)
}

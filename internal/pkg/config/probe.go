package config

import (
	"fmt"
	"os"
	"strings"
)

// ProbeResult reports whether a dependency's required settings are present.
//
// Fields:
//   - Configured: True when every required setting is present
//   - Missing: Names of the settings that are absent or empty
type ProbeResult struct {
	Configured bool
	Missing    []string
}

// Describe renders the result as a last-error string for health reporting.
// Returns "" when the dependency is fully configured.
func (r ProbeResult) Describe() string {
	if r.Configured {
		return ""
	}
	return fmt.Sprintf("missing configuration: %s", strings.Join(r.Missing, ", "))
}

// Probe checks whether the settings a dependency needs are present.
// Implementations must be safe for concurrent use; the health monitor
// calls Check on every tick.
type Probe interface {
	Check() ProbeResult
}

// EnvProbe is a Probe backed by environment variables. A variable counts
// as present when it is set to a non-empty value.
type EnvProbe struct {
	required []string
}

// NewEnvProbe creates a probe requiring the given environment variables.
func NewEnvProbe(required ...string) *EnvProbe {
	return &EnvProbe{required: required}
}

// Check reports which required environment variables are unset or empty.
func (p *EnvProbe) Check() ProbeResult {
	var missing []string
	for _, key := range p.required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	return ProbeResult{Configured: len(missing) == 0, Missing: missing}
}

// Per-dependency probes for the processing pipeline's external services.

// ExtractorProbe covers the text extraction service.
func ExtractorProbe() *EnvProbe {
	return NewEnvProbe("EXTRACTOR_API_URL", "EXTRACTOR_API_KEY")
}

// SummarizerProbe covers the language-model summarization service.
func SummarizerProbe() *EnvProbe {
	return NewEnvProbe("SUMMARIZER_API_KEY")
}

// SpeechProbe covers the text-to-speech service.
func SpeechProbe() *EnvProbe {
	return NewEnvProbe("SPEECH_API_KEY", "SPEECH_REGION")
}

// VideoMetaProbe covers the video metadata service.
func VideoMetaProbe() *EnvProbe {
	return NewEnvProbe("VIDEO_META_API_KEY")
}

// CDNProbe covers the CDN management API.
func CDNProbe() *EnvProbe {
	return NewEnvProbe("CDN_API_TOKEN", "CDN_ZONE_ID")
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func() ProbeResult

func (f ProbeFunc) Check() ProbeResult { return f() }

// StaticProbe always reports the same result. Useful for dependencies
// without configuration and in tests.
func StaticProbe(configured bool, missing ...string) Probe {
	return ProbeFunc(func() ProbeResult {
		return ProbeResult{Configured: configured, Missing: missing}
	})
}

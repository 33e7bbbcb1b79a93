package statikd

import (
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration surface of the server binary.
// CLI flags override individual fields.
type FileConfig struct {
	// Listen is the address to listen on, e.g. ":8080".
	Listen string `yaml:"listen"`
	// Root is the directory files are served from.
	Root string `yaml:"root"`
	// MaxAgeSeconds is the Cache-Control max-age sent to clients.
	MaxAgeSeconds int `yaml:"maxAgeSeconds"`
	// StreamingThresholdBytes is the file size above which responses are
	// streamed from disk instead of cached. Zero disables streaming.
	StreamingThresholdBytes int64 `yaml:"streamingThresholdBytes"`
	// ChunkSizeBytes is the buffer size used when streaming.
	ChunkSizeBytes int `yaml:"chunkSizeBytes"`
	// Cache configures the in-memory content cache.
	Cache CacheFileConfig `yaml:"cache"`
	// LogFile receives a copy of the server log in addition to stdout.
	LogFile string `yaml:"logFile"`
	// EventsDB is the SQLite file request events are recorded to.
	// Empty disables event recording.
	EventsDB string `yaml:"eventsDB"`
	// EventsRetentionDays prunes recorded events older than this many days.
	// Zero keeps events forever.
	EventsRetentionDays int `yaml:"eventsRetentionDays"`
}

type CacheFileConfig struct {
	// Disabled turns the content cache off entirely.
	Disabled bool `yaml:"disabled"`
	// MaxItems is the maximum number of cached files. Zero means unbounded.
	MaxItems int `yaml:"maxItems"`
	// MaxBytes is the maximum total of cached content bytes. Zero means
	// unbounded.
	MaxBytes int64 `yaml:"maxBytes"`
	// DefaultTTLSeconds is how long entries stay valid. Zero means entries
	// only leave the cache through eviction or invalidation.
	DefaultTTLSeconds int `yaml:"defaultTTLSeconds"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() FileConfig {
	return FileConfig{
		Listen:                  ":8080",
		Root:                    "www",
		MaxAgeSeconds:           60,
		StreamingThresholdBytes: 10 << 20,
		ChunkSizeBytes:          64 << 10,
		Cache: CacheFileConfig{
			MaxItems:          128,
			DefaultTTLSeconds: 30,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(filename string) (FileConfig, error) {
	config := DefaultConfig()
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

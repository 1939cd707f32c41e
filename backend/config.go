package backend

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the application reads from its environment.
type Config struct {
	APIURL                string        `envconfig:"API_URL" default:"http://localhost:8080"`
	APIToken              string        `envconfig:"API_TOKEN"`
	SiteID                int           `envconfig:"SITE_ID" default:"1"`
	PollInterval          time.Duration `envconfig:"POLL_INTERVAL" default:"10s"`
	SchedulerPollInterval time.Duration `envconfig:"SCHEDULER_POLL_INTERVAL" default:"30s"`
	ChartWindow           time.Duration `envconfig:"CHART_WINDOW" default:"1h"`
	RequestTimeout        time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	ClearCursorOnRelease  bool          `envconfig:"CLEAR_CURSOR_ON_RELEASE" default:"false"`
}

// Load fills the given struct from environment variables.
func Load[T any](prefix string) (T, error) {
	var cfg T
	err := envconfig.Process(prefix, &cfg)
	return cfg, err
}

// LoadConfig reads the application configuration from HELIOVIEW_* variables.
func LoadConfig() (Config, error) {
	return Load[Config]("HELIOVIEW")
}

package cli

import (
	"strings"

	"github.com/jmagar/nugs-dl/internal/apiclient"
	"github.com/jmagar/nugs-dl/internal/config"
	"github.com/jmagar/nugs-dl/internal/logger"
)

// resolveSettings loads the settings file and applies the per-invocation
// --server override on top.
func resolveSettings(configPath, serverOverride string) (config.Settings, error) {
	settings, err := config.Load(strings.TrimSpace(configPath))
	if err != nil {
		return config.Settings{}, err
	}
	if strings.TrimSpace(serverOverride) != "" {
		settings.ServerURL = strings.TrimSpace(serverOverride)
		settings = config.Normalize(settings)
	}
	return settings, nil
}

func newClient(settings config.Settings) (*apiclient.Client, error) {
	log, err := logger.New(settings.LogLevel, settings.LogDir)
	if err != nil {
		return nil, err
	}
	return apiclient.New(apiclient.Options{
		BaseURL: settings.ServerURL,
		Logger:  log,
	})
}

package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/jmagar/nugs-dl/internal/config"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath(), "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := strings.TrimSpace(*configPath)
	settings, err := config.Load(path)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": path,
			"settings":    settings,
		})
	}

	fmt.Printf("config: %s\n", path)
	fmt.Printf("server_url: %s\n", settings.ServerURL)
	fmt.Printf("reconnect_delay_s: %d\n", settings.ReconnectDelaySeconds)
	fmt.Printf("log_level: %s\n", settings.LogLevel)
	if settings.LogDir != "" {
		fmt.Printf("log_dir: %s\n", settings.LogDir)
	}
	return nil
}

func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath(), "settings file path")
	serverURL := fs.String("server-url", "", "nugs-dl server URL (empty keeps current)")
	reconnectDelay := fs.Int("reconnect-delay-s", -1, "stream reconnect delay in seconds (>=1, -1 keeps current)")
	logLevel := fs.String("log-level", "", "log level: debug|info|warn|error (empty keeps current)")
	logDir := fs.String("log-dir", "", "log directory (empty keeps current)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := strings.TrimSpace(*configPath)
	settings, err := config.Load(path)
	if err != nil {
		return err
	}

	if strings.TrimSpace(*serverURL) != "" {
		settings.ServerURL = strings.TrimSpace(*serverURL)
	}
	if *reconnectDelay != -1 {
		if *reconnectDelay <= 0 {
			return errors.New("--reconnect-delay-s must be >= 1")
		}
		settings.ReconnectDelaySeconds = *reconnectDelay
	}
	if strings.TrimSpace(*logLevel) != "" {
		level := strings.ToLower(strings.TrimSpace(*logLevel))
		switch level {
		case "debug", "info", "warn", "error":
			settings.LogLevel = level
		default:
			return errors.New("--log-level must be debug, info, warn, or error")
		}
	}
	if strings.TrimSpace(*logDir) != "" {
		settings.LogDir = strings.TrimSpace(*logDir)
	}

	if err := config.Save(path, settings); err != nil {
		return err
	}
	settings = config.Normalize(settings)

	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": path,
			"settings":    settings,
		})
	}
	fmt.Printf("updated settings in %s\n", path)
	fmt.Printf("server_url: %s\n", settings.ServerURL)
	fmt.Printf("reconnect_delay_s: %d\n", settings.ReconnectDelaySeconds)
	fmt.Printf("log_level: %s\n", settings.LogLevel)
	return nil
}

func printSettingsUsage() {
	fmt.Println("settings commands:")
	fmt.Println("  settings show")
	fmt.Println("  settings set [--server-url <url>] [--reconnect-delay-s N] [--log-level <level>] [--log-dir <dir>]")
}

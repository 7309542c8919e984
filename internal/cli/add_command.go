package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/jmagar/nugs-dl/internal/config"
	"github.com/jmagar/nugs-dl/pkg/api"
)

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath(), "settings file path")
	server := fs.String("server", "", "server URL override")
	forceVideo := fs.Bool("force-video", false, "prefer the video release when both exist")
	skipVideos := fs.Bool("skip-videos", false, "skip video downloads")
	skipChapters := fs.Bool("skip-chapters", false, "skip chapter files")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	urls := fs.Args()
	if len(urls) == 0 {
		return fmt.Errorf("add requires at least one URL")
	}

	settings, err := resolveSettings(*configPath, *server)
	if err != nil {
		return err
	}
	client, err := newClient(settings)
	if err != nil {
		return err
	}

	items, err := client.AddDownloads(context.Background(), urls, api.DownloadOptions{
		ForceVideo:   *forceVideo,
		SkipVideos:   *skipVideos,
		SkipChapters: *skipChapters,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(items)
	}

	failed := 0
	for _, item := range items {
		if item.Error != "" {
			failed++
			fmt.Printf("rejected  %s: %s\n", item.Url, item.Error)
			continue
		}
		fmt.Printf("queued    %s (job %s)\n", item.Url, item.JobID)
	}
	if failed == len(items) {
		return fmt.Errorf("server rejected all %d URL(s)", failed)
	}
	return nil
}

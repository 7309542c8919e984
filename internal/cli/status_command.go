package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/jmagar/nugs-dl/internal/config"
	"github.com/jmagar/nugs-dl/pkg/api"
)

type queueCounts struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Complete   int `json:"complete"`
	Failed     int `json:"failed"`
}

func countJobs(jobs []api.DownloadJob) queueCounts {
	counts := queueCounts{Total: len(jobs)}
	for _, job := range jobs {
		switch job.Status {
		case api.StatusQueued:
			counts.Queued++
		case api.StatusProcessing:
			counts.Processing++
		case api.StatusComplete:
			counts.Complete++
		case api.StatusFailed:
			counts.Failed++
		}
	}
	return counts
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath(), "settings file path")
	server := fs.String("server", "", "server URL override")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := resolveSettings(*configPath, *server)
	if err != nil {
		return err
	}
	client, err := newClient(settings)
	if err != nil {
		return err
	}

	jobs, err := client.ListJobs(context.Background())
	if err != nil {
		return err
	}
	counts := countJobs(jobs)

	if *jsonOut {
		return printJSON(counts)
	}
	fmt.Printf("server: %s\n", settings.ServerURL)
	fmt.Printf("total: %d\n", counts.Total)
	fmt.Printf("queued: %d\n", counts.Queued)
	fmt.Printf("processing: %d\n", counts.Processing)
	fmt.Printf("complete: %d\n", counts.Complete)
	fmt.Printf("failed: %d\n", counts.Failed)
	return nil
}

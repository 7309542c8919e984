package cli

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/jmagar/nugs-dl/internal/config"
	"github.com/jmagar/nugs-dl/pkg/api"
)

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath(), "settings file path")
	server := fs.String("server", "", "server URL override")
	status := fs.String("status", "", "only show jobs with this status (queued|processing|complete|failed)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := api.JobStatus(strings.ToLower(strings.TrimSpace(*status)))
	if filter != "" && !api.IsKnownStatus(filter) {
		return fmt.Errorf("unknown status %q", *status)
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
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })

	if filter != "" {
		filtered := jobs[:0]
		for _, job := range jobs {
			if job.Status == filter {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	if *jsonOut {
		return printJSON(jobs)
	}
	if len(jobs) == 0 {
		fmt.Println("queue is empty")
		return nil
	}

	for _, job := range jobs {
		fmt.Printf("%-36s  %-10s  %-8s  %-10s  %s\n",
			job.ID, job.Status, formatProgress(job.Progress), formatSpeed(job.SpeedBPS), jobLabel(job))
		if job.Status == api.StatusFailed && job.ErrorMessage != "" {
			fmt.Printf("%38s%s\n", "", "error: "+job.ErrorMessage)
		}
	}
	return nil
}

func formatProgress(progress float64) string {
	if progress < 0 {
		return "..."
	}
	return fmt.Sprintf("%.0f%%", progress)
}

func jobLabel(job api.DownloadJob) string {
	if job.Title != "" {
		return job.Title
	}
	return job.OriginalUrl
}

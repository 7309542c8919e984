package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/jmagar/nugs-dl/internal/config"
)

func runRemove(args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath(), "settings file path")
	server := fs.String("server", "", "server URL override")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("rm requires exactly one job ID")
	}
	jobID := fs.Arg(0)

	if !*yes {
		ok, err := promptConfirm(fmt.Sprintf("remove job %s from the server queue? [y/N] ", jobID))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}
	}

	settings, err := resolveSettings(*configPath, *server)
	if err != nil {
		return err
	}
	client, err := newClient(settings)
	if err != nil {
		return err
	}

	if err := client.RemoveJob(context.Background(), jobID); err != nil {
		return err
	}
	fmt.Printf("job %s removed\n", jobID)
	return nil
}

package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "watch":
		return runWatch(args[1:])
	case "add":
		return runAdd(args[1:])
	case "list":
		return runList(args[1:])
	case "rm":
		return runRemove(args[1:])
	case "status":
		return runStatus(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("nugs-queue: live queue client for a nugs-dl server")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  nugs-queue settings set --server-url http://localhost:8080")
	fmt.Println("  nugs-queue add <url> [<url>...]")
	fmt.Println("  nugs-queue watch")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  watch      live dashboard of the download queue")
	fmt.Println("  add        submit download URLs to the server")
	fmt.Println("  list       print the current queue snapshot")
	fmt.Println("  rm         remove a job from the server queue")
	fmt.Println("  status     aggregate queue counts")
	fmt.Println("  settings   show or change client settings")
	fmt.Println()
	fmt.Println("Run 'nugs-queue <command> -h' for command flags.")
}

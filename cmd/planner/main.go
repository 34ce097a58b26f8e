// Command planner posts a spec to a hosted agent, turns the agent's
// create_github_task calls into webhook requests and exits with the run's
// outcome.
package main

import "os"

func main() {
	os.Exit(execute())
}

package main

import "github.com/playground-engine/jobsystem/cmd/jobbench/cmd"

func main() {
	cmd.Execute()
}

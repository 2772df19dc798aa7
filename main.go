package main

import "github.com/fakeyudi/dwell/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/spookd/sling/cmd"

func main() {
	cmd.Execute()
}

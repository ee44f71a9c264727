package main

import "github.com/threadgate/threadgate/cmd/threadgate/cmd"

func main() {
	cmd.Execute()
}

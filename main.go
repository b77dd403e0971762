package main

import "github.com/dpipe/dpipe/cmd"

func main() {
	cmd.Execute()
}

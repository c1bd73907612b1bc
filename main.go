package main

import "github.com/depscout/depscout/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}

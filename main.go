package main

import "github.com/mpapenbr/lapsim/cmd"

func main() {
	cmd.Execute()
}

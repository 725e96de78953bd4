package main

import "github.com/Alijeyrad/wellness_intake/cmd"

func main() {
	cmd.Execute()
}

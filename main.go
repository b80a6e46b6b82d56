package main

import "sentibot/cmd"

func main() {
	cmd.Execute()
}

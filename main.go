package main

import "stream-cutter/cmd"

func main() {
	cmd.Execute()
}

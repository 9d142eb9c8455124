package main

import "mspro-labs/city-pulse/cmd"

func main() {
	cmd.Execute()
}

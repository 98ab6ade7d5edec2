package main

import "staywake/cmd"

func main() {
	cmd.Execute()
}

package main

import "arboreal/harvest/cmd"

func main() {
	cmd.Execute()
}

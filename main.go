package main

import "imgcrunch/cmd"

func main() {
	cmd.Execute()
}

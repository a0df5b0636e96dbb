package main

import "soilchat/cmd"

func main() {
	cmd.Execute()
}

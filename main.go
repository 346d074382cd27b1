package main

import "bikegeo/cmd"

func main() {
	cmd.Execute()
}

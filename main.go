package main

import "segue/cmd"

func main() {
	cmd.Execute()
}

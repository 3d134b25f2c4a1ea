package main

import "nathanbeddoewebdev/vmstate/cmd"

func main() {
	cmd.Execute()
}

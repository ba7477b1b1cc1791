package main

import "seatwatch/cmd/seatwatch/cmd"

func main() {
	cmd.Execute()
}

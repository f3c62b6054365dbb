package main

import "github.com/mselser95/betledger/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/matthew-heyner/family-finance/cmd"

func main() {
	cmd.Execute()
}

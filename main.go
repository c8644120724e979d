package main

import "github.com/jmehdipour/wa-notifier/cmd"

func main() {
	cmd.Execute()
}

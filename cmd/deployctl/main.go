package main

import (
	"os"
)

func run() int {
	rootCmd := newRoot().Command()
	if cmd, err := rootCmd.ExecuteC(); err != nil {
		switch err.(type) {
		case usageError:
			cmd.Println("")
			cmd.Println(cmd.UsageString())
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}

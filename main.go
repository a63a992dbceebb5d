package main

import "github.com/multiagent-debugger/pkgbuild/cmd"

func main() {
	cmd.Execute()
}

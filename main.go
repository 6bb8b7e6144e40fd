package main

import "github.com/kubestellar/agenda-gen/cmd"

func main() {
	cmd.Execute()
}

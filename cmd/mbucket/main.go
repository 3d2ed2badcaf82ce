package main

import "github.com/aripsetiawan24/manta-buckets-go/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/campuslive/signaling/cmd"

func main() {
	cmd.Execute()
}

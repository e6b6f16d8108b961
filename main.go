package main

import "github.com/jfmyers9/cloudmusic/cmd"

func main() {
	cmd.Execute()
}

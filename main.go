package main

import "github.com/TheVenuePresents/VenueBot-Main/cmd"

func main() {
	cmd.Execute()
}

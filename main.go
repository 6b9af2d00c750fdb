// The main package for the progressdemo executable.
package main

import "github.com/JakeFAU/stage-progress/cmd"

func main() {
	cmd.Execute()
}

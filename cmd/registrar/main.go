// The main package for the registrar executable.
package main

import "github.com/hvnguyen/popmart-registrar/cmd"

func main() {
	cmd.Execute()
}

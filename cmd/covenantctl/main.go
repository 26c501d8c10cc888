// covenantctl inspects covenant commitments and routes trades against a
// local pool snapshot.
//
// Usage:
//
//	covenantctl [--conf file] [--network mainnet|chipnet] <command>
package main

import "github.com/Klingon-tech/covenantlab/internal/cli"

func main() {
	cli.Execute()
}

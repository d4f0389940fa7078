// bucketsum computes content checksums for every object stored under a key
// prefix of an S3-compatible bucket. We structure it as a single executable
// with subcommands, as is common for many cloud utilities.
package main

import "github.com/verityscan/bucketsum/cmd"

func main() {
	cmd.Execute()
}

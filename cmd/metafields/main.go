// Command metafields manages schema-driven custom field values.
package main

import "github.com/mesh-intelligence/metafields/internal/cli"

func main() {
	cli.Execute()
}

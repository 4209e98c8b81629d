// SPDX-License-Identifier: MPL-2.0

// Command oops keeps the vendored addon repositories of an Odoo project in
// order.
package main

import cmd "github.com/apikcloud/oops/cmd/oops"

func main() {
	cmd.Execute()
}

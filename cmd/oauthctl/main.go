// Command oauthctl administers an OAuth provider database and exercises the
// token endpoint as a relying party.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

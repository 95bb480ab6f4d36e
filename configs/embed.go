// Package configs embeds the default agent configurations.
package configs

import (
	"embed"
	"io/fs"
)

//go:embed agents/*.yaml
var agentFiles embed.FS

// Agents returns the default agent configs rooted at the config directory.
func Agents() fs.FS {
	sub, err := fs.Sub(agentFiles, "agents")
	if err != nil {
		panic(err)
	}
	return sub
}

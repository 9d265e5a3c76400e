// Package client embeds the browser HMR runtime.
package client

import (
	_ "embed"
	"strconv"
	"strings"
)

// PortPlaceholder is replaced with the HMR transport port when served.
const PortPlaceholder = "__HMR_PORT__"

//go:embed client.mjs
var runtime string

// Source returns the runtime with hmrPort substituted.
func Source(hmrPort int) string {
	return strings.ReplaceAll(runtime, PortPlaceholder, strconv.Itoa(hmrPort))
}

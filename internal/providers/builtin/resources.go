package builtin

import (
	mcp "mcpd/internal/mcp"
)

const HostsURI = "file:///etc/hosts"

// hostsText is served in place of the real file.
const hostsText = "127.0.0.1 localhost\n::1 localhost\n"

func hostsResource() mcp.StaticResource {
	return mcp.TextResource(mcp.Resource{
		URI:      HostsURI,
		MimeType: "text/plain",
		Name:     "hosts",
	}, hostsText)
}

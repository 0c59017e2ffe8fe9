//go:build !unix

package http

import "net"

func listenConfig() net.ListenConfig {
	return net.ListenConfig{}
}

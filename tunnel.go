/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"net"

	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// listenTunnel opens an ngrok HTTP endpoint that the server can Serve on
// alongside its regular listener.
func listenTunnel(ctx context.Context, cfg *Config) (net.Listener, error) {
	var tunnel ngrokConfig.Tunnel
	if cfg.ngrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.ngrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.ngrokAuthtoken))
	if err != nil {
		return nil, fmt.Errorf("unable to start ngrok tunnel: %w", err)
	}

	logf(cfg, "SERVE: Tunnel established at %s%s/", tun.URL(), cfg.prefix)

	return tun, nil
}

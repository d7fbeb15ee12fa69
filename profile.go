/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http/pprof"

	"github.com/julienschmidt/httprouter"
)

var profiles = []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"}

func registerProfileHandlers(cfg *Config, mux *httprouter.Router) {
	base := cfg.prefix + "/debug/pprof"

	for _, name := range profiles {
		mux.Handler("GET", base+"/"+name, pprof.Handler(name))
	}

	mux.HandlerFunc("GET", base+"/", pprof.Index)
	mux.HandlerFunc("GET", base+"/cmdline", pprof.Cmdline)
	mux.HandlerFunc("GET", base+"/profile", pprof.Profile)
	mux.HandlerFunc("GET", base+"/symbol", pprof.Symbol)
	mux.HandlerFunc("GET", base+"/trace", pprof.Trace)

	logf(cfg, "SERVE: Profiling enabled at %s/", base)
}

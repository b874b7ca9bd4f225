package api

import (
	"net/http/pprof"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
)

// RegisterPprof mounts net/http/pprof under basePath. The mutex and block
// profiles stay empty unless a positive sampling rate is given.
func RegisterPprof(router gin.IRouter, basePath string, mutexFraction, blockRate int) {
	if basePath == "" {
		basePath = "/debug/pprof"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if mutexFraction > 0 {
		runtime.SetMutexProfileFraction(mutexFraction)
	}
	if blockRate > 0 {
		runtime.SetBlockProfileRate(blockRate)
	}

	group := router.Group(basePath)
	group.GET("/", gin.WrapF(pprof.Index))
	group.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	group.GET("/profile", gin.WrapF(pprof.Profile))
	group.GET("/symbol", gin.WrapF(pprof.Symbol))
	group.POST("/symbol", gin.WrapF(pprof.Symbol))
	group.GET("/trace", gin.WrapF(pprof.Trace))
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		group.GET("/"+name, gin.WrapH(pprof.Handler(name)))
	}
}

package intake

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *Service) extensionAllowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range s.cfg.AllowedExtensions {
		if ext == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

// workerGroup tracks in-flight background units so shutdown can drain them.
type workerGroup struct {
	wg sync.WaitGroup
}

func (g *workerGroup) spawn(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

func (g *workerGroup) wait() {
	g.wg.Wait()
}

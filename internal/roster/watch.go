package roster

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// Watch 监听名册文件的外部修改（例如手动编辑权限等级）并重新加载。
// 阻塞直到 ctx 结束；onReload 在成功重载后调用，可为 nil。
func (s *Store) Watch(ctx context.Context, onReload func()) error {
	if strings.TrimSpace(s.path) == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// 监听目录而不是文件，rename 写入不会让 watch 失效。
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(s.path)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warnf("roster watcher error: %v", err)
		case <-debounce:
			debounce = nil
			reloaded, err := s.reloadIfChanged()
			if err != nil {
				s.log.Warnf("reload roster %s: %v", s.path, err)
				continue
			}
			if reloaded {
				s.log.Infof("reloaded roster from %s", s.path)
				if onReload != nil {
					onReload()
				}
			}
		}
	}
}

// Package tabular file: internal/adapter/datasource/tabular/watcher.go
package tabular

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"DataAgents/internal/downloader"

	"github.com/fsnotify/fsnotify"
)

// startWatcher 监视数据文件所在目录，文件变更经防抖后重新加载。
// 仅支持本地文件；远程位置直接返回错误。
func (a *Adapter) startWatcher() error {
	path, ok := downloader.LocalPath(a.location)
	if !ok {
		return fmt.Errorf("位置 '%s' 不是本地文件，无法监视", a.location)
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建 fsnotify watcher 失败: %w", err)
	}
	// 监视目录而不是文件本身，原子替换（写临时文件再 rename）也能被捕获
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("添加目录 '%s' 到监视器失败: %w", filepath.Dir(path), err)
	}

	a.eventTimersMu.Lock()
	a.watcher = watcher
	a.eventTimersMu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				a.handleFsEvent(event, path)
			case errWatch, ok := <-watcher.Errors:
				if !ok {
					return
				}
				a.logger.Error("文件监视器报告错误", "error", errWatch)
			}
		}
	}()
	a.logger.Info("文件监视器已启动", "path", path)
	return nil
}

// handleFsEvent 过滤出目标文件的写入/创建/重命名事件并防抖。
func (a *Adapter) handleFsEvent(event fsnotify.Event, target string) {
	if filepath.Clean(event.Name) != target {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	a.eventTimersMu.Lock()
	defer a.eventTimersMu.Unlock()
	if a.watcher == nil {
		return
	}
	if a.eventTimer != nil {
		a.eventTimer.Stop()
	}
	a.eventTimer = time.AfterFunc(a.debounce, a.reload)
}

// reload 重新加载数据文件；失败时保留旧数据。
func (a *Adapter) reload() {
	src, err := a.load(context.Background())
	if err != nil {
		a.logger.Error("热加载表格数据失败，继续使用旧数据", "location", a.location, "error", err)
		return
	}
	a.swap(src)
	select {
	case a.reloaded <- struct{}{}:
	default:
	}
}

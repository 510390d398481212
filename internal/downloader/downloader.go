// file: internal/downloader/downloader.go
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Downloader 是所有下载器都必须实现的接口。
type Downloader interface {
	// SupportsScheme 支持的协议 (e.g., "http", "https", "file")
	SupportsScheme(scheme string) bool
	// Download 执行下载，返回一个可读取文件内容的对象
	Download(ctx context.Context, sourceURL *url.URL) (io.ReadCloser, error)
}

// HTTPDownloader =============================================================================
//
//	HTTP/HTTPS 下载器实现
//
// =============================================================================
type HTTPDownloader struct {
	Client *http.Client
}

func (d *HTTPDownloader) SupportsScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

func (d *HTTPDownloader) Download(ctx context.Context, sourceURL *url.URL) (io.ReadCloser, error) {
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTP请求失败: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP请求失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close() // 确保在出错时关闭body
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("HTTP请求失败: 状态码 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}

// FileDownloader =============================================================================
//
//	本地文件“下载”器 (实际上是打开文件)
//
// =============================================================================
type FileDownloader struct{}

func (d *FileDownloader) SupportsScheme(scheme string) bool {
	return scheme == "file"
}

func (d *FileDownloader) Download(_ context.Context, sourceURL *url.URL) (io.ReadCloser, error) {
	f, err := os.Open(resolveLocalFilePath(sourceURL))
	if err != nil {
		return nil, fmt.Errorf("打开本地文件失败: %w", err)
	}
	return f, nil
}

// resolveLocalFilePath 将 file:// URL 转换为本地路径。
// 例如 "file:///C:/Users/..." -> Path: "/C:/Users/..."，在 Windows 上需要去掉这个前导斜杠
func resolveLocalFilePath(u *url.URL) string {
	path := filepath.FromSlash(u.Path)
	if len(path) > 2 && path[0] == filepath.Separator && path[2] == ':' {
		path = path[1:]
	}
	return path
}

// Registry 按协议选择下载器
type Registry struct {
	downloaders []Downloader
}

// NewRegistry 创建包含 HTTP 与本地文件下载器的默认注册表
func NewRegistry(client *http.Client) *Registry {
	return &Registry{downloaders: []Downloader{&HTTPDownloader{Client: client}, &FileDownloader{}}}
}

// ToURL 将位置字符串规范化为 URL：裸的本地路径视为 file://
func ToURL(location string) (*url.URL, error) {
	if strings.Contains(location, "://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("非法的位置 '%s': %w", location, err)
		}
		return u, nil
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, fmt.Errorf("无法解析本地路径 '%s': %w", location, err)
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
}

// Open 打开 location 指向的内容（本地路径、file://、http(s)://）
func (r *Registry) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := ToURL(location)
	if err != nil {
		return nil, err
	}
	for _, d := range r.downloaders {
		if d.SupportsScheme(u.Scheme) {
			return d.Download(ctx, u)
		}
	}
	return nil, fmt.Errorf("不支持的协议 '%s'", u.Scheme)
}

// LocalPath 当 location 指向本地文件时返回其路径
func LocalPath(location string) (string, bool) {
	u, err := ToURL(location)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return resolveLocalFilePath(u), true
}

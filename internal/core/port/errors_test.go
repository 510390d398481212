// file: internal/core/port/errors_test.go
package port

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestProviderError_TruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", maxErrorBody-1) + strings.Repeat("中文", 10)
	err := &ProviderError{URL: "https://example.org/x", StatusCode: 400, Body: body}

	msg := err.Error()
	assert.True(t, utf8.ValidString(msg), "错误信息包含非法 UTF-8")
	assert.True(t, strings.HasSuffix(msg, strings.Repeat("a", maxErrorBody-1)+"..."))
	assert.True(t, errors.Is(err, ErrProvider))
}

func TestProviderError_ShortBodyUnchanged(t *testing.T) {
	err := &ProviderError{URL: "https://example.org/x", StatusCode: 404, Body: "未找到"}

	assert.Contains(t, err.Error(), "状态码 404: 未找到")
	assert.NotContains(t, err.Error(), "...")
}

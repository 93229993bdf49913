package service

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	memoMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	memoSanitizer = bluemonday.UGCPolicy()
)

// RenderMemo 把服用备注按 Markdown 渲染并清洗为安全的 HTML
func RenderMemo(memo string) string {
	memo = strings.TrimSpace(memo)
	if memo == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := memoMarkdown.Convert([]byte(memo), &buf); err != nil {
		return memoSanitizer.Sanitize(memo)
	}
	return strings.TrimSpace(memoSanitizer.Sanitize(buf.String()))
}

package extractor

import (
	"reflect"
	"testing"
)

func TestExtractImageURLs(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []string
	}{
		{
			name: "no image tags",
			html: `<html><body><p>text only</p></body></html>`,
			want: []string{},
		},
		{
			name: "tags without sources",
			html: `<img alt="a"><img src=""><img data-src="">`,
			want: []string{},
		},
		{
			name: "lazy source preferred",
			html: `<img data-src="https://mmbiz.qpic.cn/real.png" src="data:image/gif;base64,placeholder">`,
			want: []string{"https://mmbiz.qpic.cn/real.png"},
		},
		{
			name: "empty lazy source falls back to src",
			html: `<img data-src="" src="https://mmbiz.qpic.cn/eager.png">`,
			want: []string{"https://mmbiz.qpic.cn/eager.png"},
		},
		{
			name: "document order and duplicates kept",
			html: `<div><img src="a"><section><img data-src="b"></section><img src="a"></div>`,
			want: []string{"a", "b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractImageURLs(tt.html)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractImageURLs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArticleTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "title element",
			html: `<html><head><title>Quarterly Review</title></head><body><p>Slides follow.</p></body></html>`,
			want: "Quarterly Review",
		},
		{
			name: "og title",
			html: `<html><head><meta property="og:title" content="Product Launch"></head><body><p>Slides.</p></body></html>`,
			want: "Product Launch",
		},
		{
			name: "nothing",
			html: `<html><body></body></html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ArticleTitle(tt.html, "https://mp.weixin.qq.com/s/abc")
			if got != tt.want {
				t.Errorf("ArticleTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

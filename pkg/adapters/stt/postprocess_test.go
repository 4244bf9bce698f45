package stt

import "testing"

func TestPostProcess(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"  hello   world \n", "hello world"},
		{"你好，世界！", "你好,世界!"},
		{"price: $5 #tag", "price: 5 tag"},
		{"（注意）“引号”", `(注意)"引号"`},
		{"🎵 <|en|> ok", "en ok"},
		{"😀 ~~ ", ""},
	}
	for _, tc := range cases {
		if got := PostProcess(tc.in); got != tc.want {
			t.Fatalf("PostProcess(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

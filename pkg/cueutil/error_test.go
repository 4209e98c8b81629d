// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const schema = `
#Config: {
	name?:  string
	count?: int & >=0
	tags?: [...string]
	mode: *"fast" | "slow"
}
`

func TestFormatError(t *testing.T) {
	t.Parallel()

	if FormatError(nil, "x.cue") != nil {
		t.Error("FormatError(nil) should be nil")
	}
	err := FormatError(errors.New("some error"), "x.cue")
	if err.Error() != "x.cue: some error" {
		t.Errorf("FormatError() = %q", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"ui"}, "ui"},
		{[]string{"submodules", "base_dir"}, "submodules.base_dir"},
		{[]string{"scan", "skip_dirs", "2"}, "scan.skip_dirs[2]"},
		{[]string{"a", "0", "b", "1"}, "a[0].b[1]"},
		{[]string{"0"}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := formatPath(tt.path); got != tt.want {
				t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := CheckFileSize(make([]byte, 100), 100, "x.cue"); err != nil {
		t.Errorf("at limit: %v", err)
	}
	err := CheckFileSize(make([]byte, 101), 100, "x.cue")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("over limit: %v, want ErrFileTooLarge", err)
	}
	for _, want := range []string{"x.cue", "101", "100"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestDecodeMap(t *testing.T) {
	t.Parallel()

	got, err := DecodeMap(schema, []byte(`name: "a", tags: ["x"]`), "#Config", WithFilename("a.cue"))
	if err != nil {
		t.Fatalf("DecodeMap() error = %v", err)
	}
	if got["name"] != "a" || got["mode"] != "fast" {
		t.Errorf("DecodeMap() = %v", got)
	}
	if _, ok := got["count"]; ok {
		t.Error("unset optional field was decoded")
	}

	tests := []struct {
		name string
		data string
		want string
	}{
		{"syntax", `name: `, "a.cue"},
		{"constraint", `count: -1`, "count"},
		{"type", `tags: [1]`, "tags"},
		{"unknown field", `nope: 1`, "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeMap(schema, []byte(tt.data), "#Config", WithFilename("a.cue"))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("DecodeMap(%q) error = %v, want mention of %q", tt.data, err, tt.want)
			}
		})
	}

	if _, err := DecodeMap(schema, []byte(`name: "abc"`), "#Config", WithMaxFileSize(3)); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("size limit error = %v", err)
	}
}

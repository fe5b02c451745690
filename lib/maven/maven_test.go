// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package maven

import "testing"

func TestPath(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"org.lwjgl:lwjgl:3.3.1", "org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1.jar"},
		{"net.fabricmc:fabric-loader:0.15.11", "net/fabricmc/fabric-loader/0.15.11/fabric-loader-0.15.11.jar"},
		{"org.lwjgl:lwjgl:3.3.1:natives-linux", "org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1-natives-linux.jar"},
		{"de.oceanlabs.mcp:mcp_config:1.20.1@zip", "de/oceanlabs/mcp/mcp_config/1.20.1/mcp_config-1.20.1.zip"},
	}
	for _, tt := range tests {
		got, err := Path(tt.name)
		if err != nil {
			t.Errorf("Path(%q): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Path(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, name := range []string{"", "org.lwjgl", "org.lwjgl:lwjgl", "a:b:c:d:e", "a::c", "a:b:c@"} {
		if _, err := Parse(name); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", name)
		}
	}
}

func TestCoordinateString(t *testing.T) {
	for _, name := range []string{"org.ow2.asm:asm:9.6", "a:b:1:natives-windows", "a:b:1@zip"} {
		coordinate, err := Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q): %v", name, err)
		}
		if coordinate.String() != name {
			t.Errorf("String() = %q, want %q", coordinate.String(), name)
		}
	}
}

func TestURL(t *testing.T) {
	if got := URL("https://maven.fabricmc.net/", "a/b.jar"); got != "https://maven.fabricmc.net/a/b.jar" {
		t.Errorf("URL with trailing slash = %q", got)
	}
	if got := URL("https://maven.fabricmc.net", "a/b.jar"); got != "https://maven.fabricmc.net/a/b.jar" {
		t.Errorf("URL without trailing slash = %q", got)
	}
}

// Package version reports the build version of mindboggle123.
//
// Version, git commit and build time are set at compile time via -ldflags,
// falling back to the VCS stamps the Go toolchain embeds:
//
//	go build -ldflags "-X github.com/kbukum/mindboggle123/version.Version=1.2.0" ./cmd/mindboggle123
package version

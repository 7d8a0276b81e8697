package engine

import (
	"context"
	"os"
	"regexp"
	"strings"
)

var workdirDirective = regexp.MustCompile(`(?im)^[ \t]*WORKDIR[ \t]+(.+)$`)

// ParseBuildFileWorkdir scans a build file for its last working-directory
// directive (case-insensitive) and returns the cleaned path, or "" when
// the file has none or cannot be read.
func ParseBuildFileWorkdir(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	matches := workdirDirective.FindAllStringSubmatch(string(data), -1)
	if len(matches) == 0 {
		return ""
	}
	val := strings.TrimSpace(matches[len(matches)-1][1])
	val = strings.Trim(val, `'"`)
	val = strings.TrimRight(val, "/")
	return val
}

// ResolveWorkdir determines the repository directory inside a built
// image: image metadata first, then the build file's last WORKDIR, then
// the fallback. It never fails; a wrong guess only affects where later
// commands run. Relative results are coerced to absolute paths.
func (c *Client) ResolveWorkdir(ctx context.Context, image, buildFile, fallback string) string {
	wd := c.ImageWorkdir(ctx, image)
	if wd == "" {
		wd = ParseBuildFileWorkdir(buildFile)
	}
	if wd == "" {
		wd = fallback
	}
	if wd == "" {
		wd = "/app"
	}
	if !strings.HasPrefix(wd, "/") {
		wd = "/" + wd
	}
	return wd
}

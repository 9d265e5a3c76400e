package server

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/modserve/internal/errors"
)

// ErrorPage renders a failed module request as a readable HTML page.
func ErrorPage(err error, url string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := "Internal error"
		var plugin, file, code string
		if se, ok := errors.AsServeError(err); ok {
			code = se.Code
			plugin = se.Plugin
			file = se.FilePath
			if se.Type == errors.ErrorTypeTransform {
				title = "Transform failed"
			}
		}

		if _, werr := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: ui-monospace, monospace; background: #1b1b1f; color: #e6e6e6; padding: 2rem; }
h1 { color: #ff5f56; font-size: 1.25rem; }
pre { background: #26262b; padding: 1rem; border-radius: 4px; white-space: pre-wrap; }
dt { color: #9a9aa5; }
</style>
</head>
<body>
<h1>%s</h1>
<dl>
<dt>Request</dt><dd>%s</dd>
`, templ.EscapeString(title), templ.EscapeString(title), templ.EscapeString(url)); werr != nil {
			return werr
		}

		for _, row := range [][2]string{{"File", file}, {"Plugin", plugin}, {"Code", code}} {
			if row[1] == "" {
				continue
			}
			if _, werr := fmt.Fprintf(w, "<dt>%s</dt><dd>%s</dd>\n", row[0], templ.EscapeString(row[1])); werr != nil {
				return werr
			}
		}

		_, werr := fmt.Fprintf(w, "</dl>\n<pre>%s</pre>\n</body>\n</html>\n", templ.EscapeString(err.Error()))
		return werr
	})
}

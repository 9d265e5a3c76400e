package builtin

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/modserve/internal/client"
	"github.com/conneroisu/modserve/internal/moduleurl"
	"github.com/conneroisu/modserve/internal/types"
)

// ClientInjectPlugin serves the browser runtime and adds it to index.html.
type ClientInjectPlugin struct {
	hmrPort int
	inject  bool
}

// NewClientInjectPlugin creates the plugin. With inject false the runtime is
// still served to modules that import it but pages do not load it.
func NewClientInjectPlugin(hmrPort int, inject bool) *ClientInjectPlugin {
	return &ClientInjectPlugin{hmrPort: hmrPort, inject: inject}
}

func (p *ClientInjectPlugin) Name() string { return "modserve:client-inject" }

func (p *ClientInjectPlugin) ResolveID(ctx context.Context, id, importer string) (*types.ResolvedID, error) {
	if id == moduleurl.ClientPublicPath {
		return &types.ResolvedID{ID: id}, nil
	}
	return nil, nil
}

func (p *ClientInjectPlugin) Load(ctx context.Context, id string) (*types.LoadResult, error) {
	if id == moduleurl.ClientPublicPath {
		return &types.LoadResult{Code: client.Source(p.hmrPort)}, nil
	}
	return nil, nil
}

// TransformIndexHTML inserts the runtime script right after the opening
// <head> tag, or at the very start when the document has none.
func (p *ClientInjectPlugin) TransformIndexHTML(ctx context.Context, raw string) (string, error) {
	if !p.inject {
		return raw, nil
	}

	tag := fmt.Sprintf(`<script type="module" src="%s"></script>`, moduleurl.ClientPublicPath)

	z := html.NewTokenizer(strings.NewReader(raw))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		offset += len(z.Raw())
		if tt == html.StartTagToken {
			if name, _ := z.TagName(); string(name) == "head" {
				return raw[:offset] + tag + raw[offset:], nil
			}
		}
	}
	return tag + raw, nil
}

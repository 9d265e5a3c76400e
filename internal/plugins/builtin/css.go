package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/conneroisu/modserve/internal/moduleurl"
	"github.com/conneroisu/modserve/internal/plugins"
	"github.com/conneroisu/modserve/internal/types"
)

// CSSPlugin serves stylesheets as self-accepting modules that inject a
// <style> element through the browser runtime.
type CSSPlugin struct {
	root string
}

func NewCSSPlugin() *CSSPlugin { return &CSSPlugin{} }

func (p *CSSPlugin) Name() string { return "modserve:css" }

func (p *CSSPlugin) ConfigureServer(ctx context.Context, server *plugins.ServerContext) error {
	p.root = server.Root
	return nil
}

func (p *CSSPlugin) Load(ctx context.Context, id string) (*types.LoadResult, error) {
	if !moduleurl.IsCSSRequest(id) {
		return nil, nil
	}
	code, err := os.ReadFile(moduleurl.CleanURL(id))
	if err != nil {
		return nil, nil
	}
	return &types.LoadResult{Code: string(code)}, nil
}

func (p *CSSPlugin) Transform(ctx context.Context, code, id string) (*types.TransformResult, error) {
	if !moduleurl.IsCSSRequest(id) {
		return nil, nil
	}

	url, err := json.Marshal(moduleurl.ToURL(p.root, moduleurl.CleanURL(id)))
	if err != nil {
		return nil, err
	}
	css, err := json.Marshal(code)
	if err != nil {
		return nil, err
	}

	js := fmt.Sprintf(`import { createHotContext as __modserve__createHotContext, updateStyle, removeStyle } from %q;
import.meta.hot = __modserve__createHotContext(%s);
const id = %s;
const css = %s;
updateStyle(id, css);
import.meta.hot.accept();
import.meta.hot.prune(() => removeStyle(id));
export default css;
`, moduleurl.ClientPublicPath, url, url, css)

	return &types.TransformResult{Code: js}, nil
}

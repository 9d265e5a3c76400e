package builtin

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/conneroisu/modserve/internal/moduleurl"
	"github.com/conneroisu/modserve/internal/plugins"
	"github.com/conneroisu/modserve/internal/types"
)

// AssetPlugin answers `?import` requests with a module whose default
// export is the asset's URL.
type AssetPlugin struct {
	root string
}

func NewAssetPlugin() *AssetPlugin { return &AssetPlugin{} }

func (p *AssetPlugin) Name() string { return "modserve:asset" }

func (p *AssetPlugin) ConfigureServer(ctx context.Context, server *plugins.ServerContext) error {
	p.root = server.Root
	return nil
}

func (p *AssetPlugin) Load(ctx context.Context, id string) (*types.LoadResult, error) {
	if !moduleurl.IsImportRequest(id) {
		return nil, nil
	}
	url := moduleurl.ToURL(p.root, strings.TrimSuffix(id, moduleurl.ImportQuery))
	quoted, err := json.Marshal(url)
	if err != nil {
		return nil, err
	}
	return &types.LoadResult{Code: "export default " + string(quoted)}, nil
}

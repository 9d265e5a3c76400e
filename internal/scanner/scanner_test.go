package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	testCases := []struct {
		name  string
		code  string
		specs []string
		kinds []Kind
	}{
		{
			name:  "default import",
			code:  `import React from "react";`,
			specs: []string{"react"},
			kinds: []Kind{KindStatic},
		},
		{
			name:  "named and namespace imports",
			code:  "import { a, b as c } from './util.js'\nimport * as ns from \"../ns\";\nimport d, { e } from '/abs.js'",
			specs: []string{"./util.js", "../ns", "/abs.js"},
			kinds: []Kind{KindStatic, KindStatic, KindStatic},
		},
		{
			name:  "side effect import",
			code:  `import './style.css';`,
			specs: []string{"./style.css"},
			kinds: []Kind{KindSideEffect},
		},
		{
			name:  "re-exports",
			code:  "export { x } from './x'\nexport * from \"./all\"\nexport * as y from './y'",
			specs: []string{"./x", "./all", "./y"},
			kinds: []Kind{KindExportFrom, KindExportFrom, KindExportFrom},
		},
		{
			name:  "dynamic import",
			code:  `const m = await import("./lazy.js"); import('./other', { with: {} })`,
			specs: []string{"./lazy.js", "./other"},
			kinds: []Kind{KindDynamic, KindDynamic},
		},
		{
			name:  "multiline binding list",
			code:  "import {\n  a,\n  b, // trailing\n} from './multi'",
			specs: []string{"./multi"},
			kinds: []Kind{KindStatic},
		},
		{
			name: "local exports are not imports",
			code: "export const a = 1\nexport default function f() {}\nexport { a }",
		},
		{
			name:  "local export list followed by import",
			code:  "export { a }\nimport b from './b'",
			specs: []string{"./b"},
			kinds: []Kind{KindStatic},
		},
		{
			name: "dynamic import with expression is skipped",
			code: "import(base + '/x.js'); import(`./tpl.js`)",
		},
		{
			name: "import.meta is skipped",
			code: "import.meta.hot = createHotContext('/src/a.js')",
		},
		{
			name: "strings and comments are skipped",
			code: "const s = \"import x from 'nope'\"\n// import y from 'nope'\n/* import z from 'nope' */\nconst t = `import('nope')`",
		},
		{
			name: "property named import is skipped",
			code: "loader.import('./nope'); obj.export",
		},
		{
			name:  "imports after strings still found",
			code:  "const s = 'it\\'s'; import a from './after'",
			specs: []string{"./after"},
			kinds: []Kind{KindStatic},
		},
		{
			name:  "backtick inside regex literal",
			code:  "const tick = /`/g;\nimport _ from \"lodash\";",
			specs: []string{"lodash"},
			kinds: []Kind{KindStatic},
		},
		{
			name:  "quotes and slash in regex class",
			code:  "const re = /['\"\\/]/;\nconst q = /[/]'/.test(s)\nimport a from './a'",
			specs: []string{"./a"},
			kinds: []Kind{KindStatic},
		},
		{
			name:  "regex after keyword",
			code:  "function f(s) { return /'/.test(s) }\nimport e from './e'",
			specs: []string{"./e"},
			kinds: []Kind{KindStatic},
		},
		{
			name:  "division is not a regex",
			code:  "const x = a / 2; import d from './d' // /\nconst y = (b) / c / 4",
			specs: []string{"./d"},
			kinds: []Kind{KindStatic},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			imports := Scan([]byte(tc.code))
			require.Len(t, imports, len(tc.specs))
			for i, imp := range imports {
				assert.Equal(t, tc.specs[i], imp.Specifier)
				assert.Equal(t, tc.kinds[i], imp.Kind)
			}
		})
	}
}

func TestScanOffsets(t *testing.T) {
	code := []byte("import a from './a.js';\nimport './b.css';\nexport * from \"c\";\nimport('./d.js');")
	imports := Scan(code)
	require.Len(t, imports, 4)
	for _, imp := range imports {
		assert.Equal(t, imp.Specifier, string(code[imp.Start:imp.End]))
		assert.Contains(t, []byte{'\'', '"'}, code[imp.Start-1])
		assert.Equal(t, code[imp.Start-1], code[imp.End])
	}
}

func TestSpecifiers(t *testing.T) {
	assert.Equal(t, []string{"lodash", "./x"}, Specifiers([]byte(`import _ from 'lodash'; import "./x"`)))
	assert.Empty(t, Specifiers([]byte("const x = 1")))
}

func TestScanUnterminated(t *testing.T) {
	assert.Empty(t, Scan([]byte(`import a from './a`)))
	assert.Empty(t, Scan([]byte(`import { a `)))
	assert.Empty(t, Scan([]byte(`/* import a from './a'`)))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "static", KindStatic.String())
	assert.Equal(t, "dynamic", KindDynamic.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

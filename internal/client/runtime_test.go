package client

import (
	"strconv"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// browserStubs stands in for the browser globals the runtime touches.
// Dynamic imports go through __import, which serves __modules and rejects
// anything missing.
const browserStubs = `
var __logs = { log: [], error: [] };
var console = {
  log: (...args) => __logs.log.push(args.map(String).join(" ")),
  error: (...args) => __logs.error.push(args.map(String).join(" ")),
};

var location = { hostname: "localhost" };

var __sockets = [];
function WebSocket(url, protocol) {
  this.url = url;
  this.protocol = protocol;
  this.readyState = WebSocket.OPEN;
  this.sent = [];
  this.listeners = {};
  __sockets.push(this);
}
WebSocket.OPEN = 1;
WebSocket.prototype.addEventListener = function (type, fn) {
  (this.listeners[type] = this.listeners[type] || []).push(fn);
};
WebSocket.prototype.send = function (data) {
  this.sent.push(data);
};
function __emit(type, event) {
  (__sockets[0].listeners[type] || []).forEach((fn) => fn(event));
}
function __message(payload) {
  __emit("message", { data: JSON.stringify(payload) });
}

var __intervals = [];
function setInterval(fn, ms) {
  __intervals.push({ fn: fn, ms: ms, cleared: false });
  return __intervals.length;
}
function clearInterval(id) {
  __intervals[id - 1].cleared = true;
}

var __head = [];
var document = {
  head: {
    appendChild: (el) => __head.push(el),
    removeChild: (el) => __head.splice(__head.indexOf(el), 1),
  },
  createElement: (tag) => ({
    tag: tag,
    attrs: {},
    textContent: "",
    setAttribute(k, v) { this.attrs[k] = v; },
  }),
};

var __modules = {};
var __imports = [];
function __import(spec) {
  __imports.push(spec);
  const mod = __modules[spec];
  return mod ? Promise.resolve(mod) : Promise.reject(new Error("cannot load " + spec));
}
`

type browser struct {
	t  *testing.T
	vm *goja.Runtime
}

// newBrowser evaluates the runtime as a classic script: exports become
// plain functions, import() goes to the stubbed importer and the module
// internals are published on __runtime.
func newBrowser(t *testing.T) *browser {
	t.Helper()
	vm := goja.New()
	_, err := vm.RunString(browserStubs)
	require.NoError(t, err)

	script := strings.NewReplacer(
		"export function ", "function ",
		"import(`", "__import(`",
	).Replace(Source(24678))
	script += "\nvar __runtime = { createHotContext, updateStyle, removeStyle, state };\n"

	_, err = vm.RunString(script)
	require.NoError(t, err)
	return &browser{t: t, vm: vm}
}

// run evaluates js. Promise jobs queued by it have settled when it returns.
func (b *browser) run(js string) {
	b.t.Helper()
	_, err := b.vm.RunString(js)
	require.NoError(b.t, err)
}

// json returns expr serialized by JSON.stringify.
func (b *browser) json(expr string) string {
	b.t.Helper()
	v, err := b.vm.RunString("JSON.stringify(" + expr + ")")
	require.NoError(b.t, err)
	return v.String()
}

func (b *browser) update(path string, timestamp int) {
	b.t.Helper()
	b.run(`__message({ type: "update", updates: [{ type: "js-update", timestamp: ` +
		strconv.Itoa(timestamp) + `, path: "` + path + `", acceptedPath: "` + path + `" }] })`)
}

func TestRuntimeConnection(t *testing.T) {
	b := newBrowser(t)

	assert.JSONEq(t, `["ws://localhost:24678","modserve-hmr"]`,
		b.json(`[__sockets[0].url, __sockets[0].protocol]`))

	b.run(`__message({ type: "connected" })`)
	assert.JSONEq(t, `[1000]`, b.json(`__intervals.map((i) => i.ms)`))

	b.run(`__intervals[0].fn(); __intervals[0].fn()`)
	assert.JSONEq(t, `["ping","ping"]`, b.json(`__sockets[0].sent`))

	b.run(`__emit("close", {})`)
	assert.JSONEq(t, `true`, b.json(`__intervals[0].cleared`))
	assert.JSONEq(t, `1`, b.json(`__sockets.length`), "no reconnect after close")
}

func TestRuntimeIgnoresUnregisteredPath(t *testing.T) {
	b := newBrowser(t)

	b.update("/src/unknown.js", 10)
	assert.JSONEq(t, `[]`, b.json(`__imports`))
	assert.JSONEq(t, `[]`, b.json(`__logs.error`))
}

func TestRuntimeSelfAccept(t *testing.T) {
	b := newBrowser(t)
	b.run(`
		var got = [];
		__runtime.createHotContext("/src/a.js").accept((mod) => got.push(mod.value));
		__modules["/src/a.js?t=7"] = { value: 2 };
	`)

	b.update("/src/a.js", 7)
	assert.JSONEq(t, `["/src/a.js?t=7"]`, b.json(`__imports`))
	assert.JSONEq(t, `[2]`, b.json(`got`))
}

func TestRuntimeFailedImportInvokesNothing(t *testing.T) {
	b := newBrowser(t)
	b.run(`
		var calls = 0;
		__runtime.createHotContext("/src/a.js").accept(() => calls++);
	`)

	b.update("/src/a.js", 3)
	assert.JSONEq(t, `0`, b.json(`calls`))
	assert.JSONEq(t, `["/src/a.js?t=3"]`, b.json(`__imports`))
	assert.Contains(t, b.json(`__logs.error`), "failed to fetch update for /src/a.js")
}

func TestRuntimeDependencyOrder(t *testing.T) {
	b := newBrowser(t)
	b.run(`
		var got = null;
		__runtime.createHotContext("/src/main.js").accept(
			["/src/other.js", "/src/main.js"],
			(mods) => { got = mods.map((m) => (m ? m.name : null)); }
		);
		__modules["/src/main.js?t=4"] = { name: "main" };
	`)

	b.update("/src/main.js", 4)
	assert.JSONEq(t, `[null,"main"]`, b.json(`got`))
}

func TestRuntimeReexecutionClearsCallbacks(t *testing.T) {
	b := newBrowser(t)
	b.run(`
		var calls = [];
		__runtime.createHotContext("/src/a.js").accept(() => calls.push("first"));
		__runtime.createHotContext("/src/a.js").accept(() => calls.push("second"));
		__modules["/src/a.js?t=9"] = {};
	`)

	b.update("/src/a.js", 9)
	assert.JSONEq(t, `["second"]`, b.json(`calls`))
}

// prune callbacks are recorded for a future pass that removes modules no
// longer imported; no update path runs them yet.
func TestRuntimePruneStoredNotInvoked(t *testing.T) {
	b := newBrowser(t)
	b.run(`
		var pruned = 0;
		var hot = __runtime.createHotContext("/src/style.css");
		hot.accept();
		hot.prune(() => pruned++);
		__modules["/src/style.css?t=1"] = {};
	`)

	b.update("/src/style.css", 1)
	b.update("/src/gone.js", 2)
	assert.JSONEq(t, `true`, b.json(`__runtime.state.pruneMap.has("/src/style.css")`))
	assert.JSONEq(t, `0`, b.json(`pruned`))
}

func TestRuntimeStyles(t *testing.T) {
	b := newBrowser(t)

	b.run(`__runtime.updateStyle("/src/app.css", "body{color:red}")`)
	assert.JSONEq(t, `[{"tag":"style","attrs":{"type":"text/css","data-modserve-id":"/src/app.css"},"textContent":"body{color:red}"}]`,
		b.json(`__head`))

	b.run(`__runtime.updateStyle("/src/app.css", "body{color:blue}")`)
	assert.JSONEq(t, `["body{color:blue}"]`, b.json(`__head.map((s) => s.textContent)`))

	b.run(`__runtime.removeStyle("/src/app.css")`)
	assert.JSONEq(t, `[]`, b.json(`__head`))
	assert.JSONEq(t, `false`, b.json(`__runtime.state.sheetsMap.has("/src/app.css")`))
}

func TestRuntimeInvalidMessage(t *testing.T) {
	b := newBrowser(t)

	b.run(`__emit("message", { data: "not json" })`)
	assert.Contains(t, b.json(`__logs.error`), "invalid message")
}

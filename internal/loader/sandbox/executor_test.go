package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/markup"
)

const notice = `<div data-subapp-notice="true" style="padding:12px;color:#e67e22;">Script did not run (blocked or errored)</div>`

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mount builds a host document with a bundle wrapper holding content.
func mount(t *testing.T, content string) (*html.Node, *html.Node) {
	t.Helper()
	doc, err := markup.ParseDocument(`<div id="outside">host</div><div id="viewer"></div>`)
	require.NoError(t, err)

	viewer := markup.Body(doc).LastChild
	require.NotNil(t, viewer)

	wrapper := markup.NewElement("div", html.Attribute{Key: "data-subapp", Val: "true"})
	viewer.AppendChild(wrapper)
	require.NoError(t, markup.SetInner(wrapper, content))
	return doc, wrapper
}

func newExecutor(t *testing.T, mutate ...func(*Config)) *Executor {
	t.Helper()
	config := DefaultConfig()
	for _, m := range mutate {
		m(&config)
	}
	pool, err := NewPool(config, 1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return NewExecutor(pool, nil)
}

func content(t *testing.T, wrapper *html.Node) string {
	t.Helper()
	out, err := markup.RenderChildren(wrapper)
	require.NoError(t, err)
	return out
}

func TestExecuteUpdatesScopedElement(t *testing.T) {
	_, wrapper := mount(t, `<div id="root">Hi</div>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper,
		`document.getElementById("root").textContent = "Loaded"`)

	assert.True(t, rep.Ran)
	assert.False(t, rep.Notice)
	assert.NoError(t, rep.Err)
	assert.Equal(t, `<div id="root">Loaded</div>`, content(t, wrapper))
}

func TestExecuteNullTextClears(t *testing.T) {
	_, wrapper := mount(t, `<p id="a">x</p><p id="b">y</p><p id="c">z</p>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `
		document.getElementById("a").textContent = null;
		document.getElementById("b").innerText = undefined;
		document.getElementById("c").textContent = 0;`)

	require.NoError(t, rep.Err)
	assert.Equal(t, `<p id="a"></p><p id="b"></p><p id="c">0</p>`, content(t, wrapper))
}

func TestExecuteMissingElementIsNull(t *testing.T) {
	_, wrapper := mount(t, `<div id="root">Hi</div>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `
		var el = document.getElementById("missing");
		if (el !== null) { throw new Error("expected null"); }
		console.log("ok");
	`)

	assert.True(t, rep.Ran)
	assert.False(t, rep.Notice)
	require.Len(t, rep.Console, 1)
	assert.Equal(t, "ok", rep.Console[0].Message)
	assert.Equal(t, `<div id="root">Hi</div>`, content(t, wrapper))
}

func TestExecuteThrowAppendsOneNotice(t *testing.T) {
	_, wrapper := mount(t, `<p>kept</p>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `throw new Error("boom")`)

	assert.False(t, rep.Ran)
	assert.True(t, rep.Notice)
	assert.ErrorIs(t, rep.Err, ErrScriptExecutionFailed)
	assert.Contains(t, rep.Error, "boom")
	assert.Equal(t, `<p>kept</p>`+notice, content(t, wrapper))
}

func TestExecuteSyntaxError(t *testing.T) {
	_, wrapper := mount(t, `<p>kept</p>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `function (`)

	assert.True(t, rep.Notice)
	assert.ErrorIs(t, rep.Err, ErrScriptExecutionFailed)
	assert.Equal(t, `<p>kept</p>`+notice, content(t, wrapper))
}

func TestExecuteEmptyScript(t *testing.T) {
	_, wrapper := mount(t, `<p>x</p>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, "  \n ")

	assert.Equal(t, Report{}, rep)
	assert.Equal(t, `<p>x</p>`, content(t, wrapper))
}

func TestExecuteCapabilities(t *testing.T) {
	_, wrapper := mount(t, `<div id="root"></div>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `
		if (this !== window) { throw new Error("receiver"); }
		if (window.document !== document) { throw new Error("document"); }
		if (typeof require !== "undefined") { throw new Error("require"); }
		if (typeof process !== "undefined") { throw new Error("process"); }
		if (typeof window.location !== "undefined") { throw new Error("location"); }
		if (typeof window.localStorage !== "undefined") { throw new Error("storage"); }
		if (typeof window.fetch !== "undefined") { throw new Error("fetch"); }
		console.log("checked");
	`)

	assert.True(t, rep.Ran, rep.Error)
	require.Len(t, rep.Console, 1)
}

func TestExecuteCannotReachHost(t *testing.T) {
	_, wrapper := mount(t, `<div id="root"><span>a</span></div>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `
		console.log(document.getElementById("outside") === null);
		console.log(document.getElementById("viewer") === null);
		console.log(document.querySelector("#outside") === null);
		console.log(document.querySelectorAll("div").length);
		console.log(document.getElementById("root").parentNode === null);
		console.log(document.querySelector("span").parentNode.id);
	`)

	require.True(t, rep.Ran, rep.Error)
	var got []string
	for _, e := range rep.Console {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"true", "true", "true", "1", "true", "root"}, got)
}

func TestExecuteElementAPI(t *testing.T) {
	_, wrapper := mount(t, `<ul class="list"><li>a</li><li>b</li></ul><div id="root"></div>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `
		var list = document.querySelector("ul.list");
		var li = document.createElement("li");
		li.textContent = "c";
		li.setAttribute("data-x", "1");
		list.appendChild(li);
		console.log(document.querySelectorAll("li").length);
		console.log(document.getElementById("root") === document.querySelector("#root"));

		var root = document.getElementById("root");
		root.classList.add("on", "big");
		root.classList.toggle("big");
		console.log(root.classList.contains("on"), root.className);

		root.innerHTML = "<b>bold</b><script>bad()</script>";
		console.log(root.children.length, root.firstElementChild.tagName);

		list.removeChild(list.children[0]);
	`)

	require.True(t, rep.Ran, rep.Error)
	var got []string
	for _, e := range rep.Console {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"3", "true", "true on", "1 B"}, got)
	assert.Equal(t,
		`<ul class="list"><li>b</li><li data-x="1">c</li></ul><div id="root" class="on"><b>bold</b></div>`,
		content(t, wrapper))
}

func TestExecuteRejectsScriptElements(t *testing.T) {
	_, wrapper := mount(t, `<p>x</p>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `document.createElement("script")`)

	assert.True(t, rep.Notice)
	assert.Equal(t, `<p>x</p>`+notice, content(t, wrapper))
}

func TestExecuteRejectsCycles(t *testing.T) {
	_, wrapper := mount(t, `<div id="outer"><div id="inner"></div></div>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `
		var outer = document.getElementById("outer");
		document.getElementById("inner").appendChild(outer);
	`)

	assert.True(t, rep.Notice)
	assert.Contains(t, rep.Error, "contains the parent")
}

func TestExecuteRecordsListeners(t *testing.T) {
	_, wrapper := mount(t, `<button id="go">Go</button>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `
		var btn = document.getElementById("go");
		function onClick() {}
		btn.addEventListener("click", onClick);
		btn.addEventListener("click", onClick);
		btn.addEventListener("keyup", function () {});
		window.addEventListener("resize", function () {});
		btn.removeEventListener("keyup", onClick);
	`)

	require.True(t, rep.Ran, rep.Error)
	assert.Equal(t, 3, rep.Listeners)
}

func TestExecuteTimers(t *testing.T) {
	_, wrapper := mount(t, `<div id="root">Hi</div>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `
		setTimeout(function () { document.getElementById("root").textContent = "later"; }, 50);
		var id = setTimeout(function () { throw new Error("cleared"); }, 10);
		clearTimeout(id);
		var n = 0;
		var iv = setInterval(function () { n++; if (n === 3) { clearInterval(iv); } }, 10);
		setTimeout(function (label) { console.log(label + n); }, 1000, "n=");
	`)

	require.True(t, rep.Ran, rep.Error)
	assert.Equal(t, 5, rep.TimersRun)
	assert.Equal(t, 0, rep.TimersPending)
	require.Len(t, rep.Console, 1)
	assert.Equal(t, "n=3", rep.Console[0].Message)
	assert.Equal(t, `<div id="root">later</div>`, content(t, wrapper))
}

func TestExecuteTimerOrdering(t *testing.T) {
	_, wrapper := mount(t, ``)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `
		setTimeout(function () { console.log("c"); }, 5);
		setTimeout(function () { console.log("a"); });
		setTimeout(function () { console.log("b"); }, 0);
		setTimeout(function () { console.log("never"); }, 60000);
	`)

	require.True(t, rep.Ran, rep.Error)
	var got []string
	for _, e := range rep.Console {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 1, rep.TimersPending)
}

func TestExecuteRunawayInterval(t *testing.T) {
	_, wrapper := mount(t, ``)

	rep := newExecutor(t, func(c *Config) { c.MaxTimerRuns = 50 }).Execute(context.Background(), wrapper,
		`setInterval(function () {}, 0)`)

	require.True(t, rep.Ran, rep.Error)
	assert.Equal(t, 50, rep.TimersRun)
	assert.Equal(t, 1, rep.TimersPending)
}

func TestExecuteTimerCallbackThrows(t *testing.T) {
	_, wrapper := mount(t, `<p>x</p>`)

	rep := newExecutor(t).Execute(context.Background(), wrapper, `
		setTimeout(function () { throw new Error("tick"); }, 1);
		setTimeout(function () { console.log("after"); }, 2);
	`)

	assert.True(t, rep.Notice)
	assert.Contains(t, rep.Error, "tick")
	assert.Empty(t, rep.Console)
	assert.Equal(t, `<p>x</p>`+notice, content(t, wrapper))
}

func TestExecuteTimeout(t *testing.T) {
	_, wrapper := mount(t, `<p>x</p>`)

	rep := newExecutor(t, func(c *Config) { c.Timeout = 100 * time.Millisecond }).
		Execute(context.Background(), wrapper, `while (true) {}`)

	assert.True(t, rep.Notice)
	assert.ErrorIs(t, rep.Err, ErrBudgetSpent)
	assert.Less(t, rep.Duration, 2*time.Second)
}

func TestExecuteCancelled(t *testing.T) {
	_, wrapper := mount(t, `<p>x</p>`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := newExecutor(t).Execute(ctx, wrapper, `while (true) {}`)

	assert.True(t, rep.Notice)
	assert.ErrorIs(t, rep.Err, context.Canceled)
}

func TestExecuteStackOverflow(t *testing.T) {
	_, wrapper := mount(t, `<p>x</p>`)

	rep := newExecutor(t, func(c *Config) { c.MaxCallStack = 64 }).
		Execute(context.Background(), wrapper, `function f() { f(); } f();`)

	assert.True(t, rep.Notice)
}

func TestExecuteConsoleDisabled(t *testing.T) {
	_, wrapper := mount(t, ``)

	rep := newExecutor(t, func(c *Config) { c.EnableConsole = false }).
		Execute(context.Background(), wrapper, `console.log("quiet"); console.error("still quiet");`)

	assert.True(t, rep.Ran)
	assert.Empty(t, rep.Console)
}

func TestExecuteRecoversStrategyPanic(t *testing.T) {
	_, wrapper := mount(t, `<p>x</p>`)
	var observed Report

	exec := NewExecutor(StrategyFunc(func(context.Context, *Env, string) error {
		panic("engine bug")
	}), nil, WithObserver(func(r Report) { observed = r }))

	rep := exec.Execute(context.Background(), wrapper, `1`)

	assert.True(t, rep.Notice)
	assert.Contains(t, rep.Error, "engine bug")
	assert.Equal(t, rep.Error, observed.Error)
	assert.Equal(t, `<p>x</p>`+notice, content(t, wrapper))
}

func TestExecuteWithoutStrategy(t *testing.T) {
	_, wrapper := mount(t, `<p>x</p>`)

	rep := NewExecutor(nil, nil).Execute(context.Background(), wrapper, `1`)
	assert.True(t, rep.Notice)
}

func TestAppendNoticeOnce(t *testing.T) {
	_, wrapper := mount(t, `<p>x</p>`)

	assert.True(t, AppendNotice(wrapper))
	assert.False(t, AppendNotice(wrapper))
	assert.Equal(t, `<p>x</p>`+notice, content(t, wrapper))
}

package sandbox

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/markup"
)

var attrName = regexp.MustCompile(`^[A-Za-z_:][-A-Za-z0-9_:.]*$`)

// bridge exposes one Env to one goja runtime. Every node a script can reach
// passes through wrap, which refuses anything outside the document scope.
type bridge struct {
	vm     *goja.Runtime
	env    *Env
	timers *timerQueue
	logger *zap.Logger

	objects   map[*html.Node]*goja.Object
	nodes     map[*goja.Object]*html.Node
	listeners map[*html.Node]map[string][]goja.Value
}

func newBridge(vm *goja.Runtime, env *Env, logger *zap.Logger) *bridge {
	return &bridge{
		vm:        vm,
		env:       env,
		timers:    newTimerQueue(),
		logger:    logger,
		objects:   make(map[*html.Node]*goja.Object),
		nodes:     make(map[*goja.Object]*html.Node),
		listeners: make(map[*html.Node]map[string][]goja.Value),
	}
}

func (b *bridge) throw(format string, args ...any) {
	panic(b.vm.NewGoError(fmt.Errorf(format, args...)))
}

func (b *bridge) accessor(o *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	getter := b.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
	setter := goja.Undefined()
	if set != nil {
		setter = b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	if err := o.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
		b.logger.Debug("define accessor failed", zap.String("name", name), zap.Error(err))
	}
}

// window builds the receiver and first argument of the script function.
func (b *bridge) window(document *goja.Object) *goja.Object {
	w := b.vm.NewObject()

	console := b.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		console.Set(level, b.consoleFunc(level))
	}

	w.Set("console", console)
	w.Set("document", document)
	w.Set("setTimeout", b.setTimer(false))
	w.Set("setInterval", b.setTimer(true))
	w.Set("clearTimeout", b.clearTimer)
	w.Set("clearInterval", b.clearTimer)
	w.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		b.listen(nil, call)
		return goja.Undefined()
	})
	w.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		b.unlisten(nil, call)
		return goja.Undefined()
	})
	w.Set("window", w)
	return w
}

func (b *bridge) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = b.format(arg)
		}
		b.env.Console.Write(level, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func (b *bridge) format(v goja.Value) string {
	if o, ok := v.(*goja.Object); ok {
		if n, ok := b.nodes[o]; ok {
			return "[object HTML" + strings.ToUpper(n.Data) + "Element]"
		}
	}
	return v.String()
}

func (b *bridge) setTimer(repeat bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return b.vm.ToValue(0)
		}
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append([]goja.Value(nil), call.Arguments[2:]...)
		}
		return b.vm.ToValue(b.timers.add(fn, delayArg(call.Argument(1)), repeat, args))
	}
}

func (b *bridge) clearTimer(call goja.FunctionCall) goja.Value {
	b.timers.clear(call.Argument(0).ToInteger())
	return goja.Undefined()
}

func (b *bridge) document() *goja.Object {
	doc := b.env.Document
	d := b.vm.NewObject()

	d.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		return b.wrap(doc.GetElementByID(call.Argument(0).String()))
	})
	d.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		n, err := doc.QuerySelector(call.Argument(0).String())
		if err != nil {
			b.throw("querySelector: %v", err)
		}
		return b.wrap(n)
	})
	d.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		list, err := doc.QuerySelectorAll(call.Argument(0).String())
		if err != nil {
			b.throw("querySelectorAll: %v", err)
		}
		return b.wrapList(list)
	})
	d.Set("createElement", func(call goja.FunctionCall) goja.Value {
		tag := call.Argument(0).String()
		n, err := doc.CreateElement(tag)
		if err != nil {
			b.throw("createElement: %v", err)
		}
		if n.DataAtom == atom.Script {
			b.throw("createElement: script elements are not allowed")
		}
		return b.wrap(n)
	})
	return d
}

// wrap returns the proxy for n, or null when n is absent or out of scope.
// The same node always yields the same object.
func (b *bridge) wrap(n *html.Node) goja.Value {
	if n == nil || n.Type != html.ElementNode || !b.env.Document.Exposable(n) {
		return goja.Null()
	}
	if o, ok := b.objects[n]; ok {
		return o
	}
	return b.element(n)
}

func (b *bridge) wrapList(list []*html.Node) goja.Value {
	out := make([]any, 0, len(list))
	for _, n := range list {
		if v := b.wrap(n); !goja.IsNull(v) {
			out = append(out, v)
		}
	}
	return b.vm.NewArray(out...)
}

func (b *bridge) unwrap(v goja.Value) *html.Node {
	if o, ok := v.(*goja.Object); ok {
		if n, ok := b.nodes[o]; ok {
			return n
		}
	}
	panic(b.vm.NewTypeError("argument is not an element"))
}

func (b *bridge) element(n *html.Node) *goja.Object {
	o := b.vm.NewObject()
	b.objects[n] = o
	b.nodes[o] = n

	tag := strings.ToUpper(n.Data)
	o.Set("nodeType", 1)
	o.Set("nodeName", tag)
	o.Set("tagName", tag)

	b.attrAccessor(o, n, "id")
	b.attrAccessor(o, n, "className", "class")
	b.attrAccessor(o, n, "title")

	text := func() goja.Value { return b.vm.ToValue(htmlquery.InnerText(n)) }
	setText := func(v goja.Value) {
		markup.RemoveChildren(n)
		if goja.IsNull(v) || goja.IsUndefined(v) {
			return
		}
		if s := v.String(); s != "" {
			n.AppendChild(markup.NewText(s))
		}
	}
	b.accessor(o, "textContent", text, setText)
	b.accessor(o, "innerText", text, setText)

	b.accessor(o, "innerHTML", func() goja.Value {
		s, err := markup.RenderChildren(n)
		if err != nil {
			b.throw("innerHTML: %v", err)
		}
		return b.vm.ToValue(s)
	}, func(v goja.Value) {
		b.setInner(n, v.String())
	})
	b.accessor(o, "outerHTML", func() goja.Value {
		s, err := markup.Render(n)
		if err != nil {
			b.throw("outerHTML: %v", err)
		}
		return b.vm.ToValue(s)
	}, nil)

	parent := func() goja.Value { return b.wrap(n.Parent) }
	b.accessor(o, "parentNode", parent, nil)
	b.accessor(o, "parentElement", parent, nil)
	b.accessor(o, "children", func() goja.Value {
		var kids []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				kids = append(kids, c)
			}
		}
		return b.wrapList(kids)
	}, nil)
	b.accessor(o, "firstElementChild", func() goja.Value {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				return b.wrap(c)
			}
		}
		return goja.Null()
	}, nil)

	o.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := markup.Attr(n, strings.ToLower(call.Argument(0).String()))
		if !ok {
			return goja.Null()
		}
		return b.vm.ToValue(v)
	})
	o.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if !attrName.MatchString(name) {
			b.throw("setAttribute: invalid attribute name %q", name)
		}
		markup.SetAttr(n, strings.ToLower(name), call.Argument(1).String())
		return goja.Undefined()
	})
	o.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		markup.RemoveAttr(n, strings.ToLower(call.Argument(0).String()))
		return goja.Undefined()
	})
	o.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		_, ok := markup.Attr(n, strings.ToLower(call.Argument(0).String()))
		return b.vm.ToValue(ok)
	})

	o.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		b.insert(n, b.unwrap(call.Argument(0)), nil)
		return call.Argument(0)
	})
	o.Set("insertBefore", func(call goja.FunctionCall) goja.Value {
		var ref *html.Node
		if r := call.Argument(1); !goja.IsNull(r) && !goja.IsUndefined(r) {
			ref = b.unwrap(r)
			if ref.Parent != n {
				b.throw("insertBefore: reference is not a child of this element")
			}
		}
		b.insert(n, b.unwrap(call.Argument(0)), ref)
		return call.Argument(0)
	})
	o.Set("append", func(call goja.FunctionCall) goja.Value {
		for _, arg := range call.Arguments {
			if obj, ok := arg.(*goja.Object); ok {
				if child, ok := b.nodes[obj]; ok {
					b.insert(n, child, nil)
					continue
				}
			}
			n.AppendChild(markup.NewText(arg.String()))
		}
		return goja.Undefined()
	})
	o.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		child := b.unwrap(call.Argument(0))
		if child.Parent != n {
			b.throw("removeChild: node is not a child of this element")
		}
		n.RemoveChild(child)
		return call.Argument(0)
	})
	o.Set("remove", func(goja.FunctionCall) goja.Value {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return goja.Undefined()
	})

	o.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		m, err := queryFirst(n, call.Argument(0).String())
		if err != nil {
			b.throw("querySelector: %v", err)
		}
		return b.wrap(m)
	})
	o.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		list, err := queryAll(n, call.Argument(0).String())
		if err != nil {
			b.throw("querySelectorAll: %v", err)
		}
		return b.wrapList(list)
	})

	o.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		b.listen(n, call)
		return goja.Undefined()
	})
	o.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		b.unlisten(n, call)
		return goja.Undefined()
	})

	o.Set("classList", b.classList(n))
	return o
}

func (b *bridge) attrAccessor(o *goja.Object, n *html.Node, prop string, attr ...string) {
	key := prop
	if len(attr) > 0 {
		key = attr[0]
	}
	b.accessor(o, prop, func() goja.Value {
		v, _ := markup.Attr(n, key)
		return b.vm.ToValue(v)
	}, func(v goja.Value) {
		markup.SetAttr(n, key, v.String())
	})
}

func (b *bridge) setInner(n *html.Node, raw string) {
	nodes, err := markup.Fragment(raw, n)
	if err != nil {
		b.throw("innerHTML: %v", err)
	}
	markup.RemoveChildren(n)
	for _, c := range markup.StripElements(nodes, atom.Script) {
		n.AppendChild(c)
	}
}

// insert moves child under parent, before ref when ref is non-nil.
func (b *bridge) insert(parent, child, ref *html.Node) {
	if contains(child, parent) {
		b.throw("the new child element contains the parent")
	}
	if child == ref {
		return
	}
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	if ref == nil {
		parent.AppendChild(child)
		return
	}
	parent.InsertBefore(child, ref)
}

func (b *bridge) classList(n *html.Node) *goja.Object {
	classes := func() []string {
		v, _ := markup.Attr(n, "class")
		return strings.Fields(v)
	}
	store := func(list []string) {
		markup.SetAttr(n, "class", strings.Join(list, " "))
	}
	has := func(list []string, name string) bool {
		for _, c := range list {
			if c == name {
				return true
			}
		}
		return false
	}
	without := func(list []string, name string) []string {
		out := list[:0]
		for _, c := range list {
			if c != name {
				out = append(out, c)
			}
		}
		return out
	}

	cl := b.vm.NewObject()
	cl.Set("add", func(call goja.FunctionCall) goja.Value {
		list := classes()
		for _, arg := range call.Arguments {
			if name := arg.String(); !has(list, name) {
				list = append(list, name)
			}
		}
		store(list)
		return goja.Undefined()
	})
	cl.Set("remove", func(call goja.FunctionCall) goja.Value {
		list := classes()
		for _, arg := range call.Arguments {
			list = without(list, arg.String())
		}
		store(list)
		return goja.Undefined()
	})
	cl.Set("contains", func(call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(has(classes(), call.Argument(0).String()))
	})
	cl.Set("toggle", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		list := classes()
		on := !has(list, name)
		if force := call.Argument(1); !goja.IsUndefined(force) {
			on = force.ToBoolean()
		}
		list = without(list, name)
		if on {
			list = append(list, name)
		}
		store(list)
		return b.vm.ToValue(on)
	})
	return cl
}

// listen records a handler. Events are never dispatched on the host; the
// count is reported so callers can tell a script expected interaction.
func (b *bridge) listen(n *html.Node, call goja.FunctionCall) {
	if _, ok := goja.AssertFunction(call.Argument(1)); !ok {
		return
	}
	typ := call.Argument(0).String()
	if b.listeners[n] == nil {
		b.listeners[n] = make(map[string][]goja.Value)
	}
	for _, fn := range b.listeners[n][typ] {
		if fn.StrictEquals(call.Argument(1)) {
			return
		}
	}
	b.listeners[n][typ] = append(b.listeners[n][typ], call.Argument(1))
}

func (b *bridge) unlisten(n *html.Node, call goja.FunctionCall) {
	typ := call.Argument(0).String()
	fns := b.listeners[n][typ]
	for i, fn := range fns {
		if fn.StrictEquals(call.Argument(1)) {
			b.listeners[n][typ] = append(fns[:i], fns[i+1:]...)
			return
		}
	}
}

func (b *bridge) listenerCount() int {
	total := 0
	for _, byType := range b.listeners {
		for _, fns := range byType {
			total += len(fns)
		}
	}
	return total
}

//go:build js && wasm

package main

import (
	"syscall/js"

	"github.com/inamate/bubblesets/internal/engine"
)

var eng *engine.Engine

func main() {
	eng = engine.NewEngine()

	// Create the engine API object
	bubbleEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	bubbleEngine.Set("loadScene", js.FuncOf(loadScene))
	bubbleEngine.Set("loadSampleScene", js.FuncOf(loadSampleScene))
	bubbleEngine.Set("apply", js.FuncOf(apply))
	bubbleEngine.Set("moveNode", js.FuncOf(moveNode))
	bubbleEngine.Set("resizeNode", js.FuncOf(resizeNode))
	bubbleEngine.Set("setShape", js.FuncOf(setShape))
	bubbleEngine.Set("removeNode", js.FuncOf(removeNode))
	bubbleEngine.Set("removeEdge", js.FuncOf(removeEdge))
	bubbleEngine.Set("removeGrouping", js.FuncOf(removeGrouping))
	bubbleEngine.Set("setViewport", js.FuncOf(setViewport))
	bubbleEngine.Set("layoutStop", js.FuncOf(layoutStop))
	bubbleEngine.Set("refresh", js.FuncOf(refresh))
	bubbleEngine.Set("setSelection", js.FuncOf(setSelection))
	bubbleEngine.Set("tick", js.FuncOf(tick))

	// --- Queries (frontend ← backend) ---
	bubbleEngine.Set("render", js.FuncOf(render))
	bubbleEngine.Set("hitTest", js.FuncOf(hitTest))
	bubbleEngine.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	bubbleEngine.Set("getDocument", js.FuncOf(getDocument))
	bubbleEngine.Set("getSelection", js.FuncOf(getSelection))
	bubbleEngine.Set("getOutline", js.FuncOf(getOutline))

	js.Global().Set("bubbleEngine", bubbleEngine)
	js.Global().Set("bubbleWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func result(err error) any {
	if err != nil {
		return js.ValueOf(map[string]any{"error": err.Error()})
	}
	return js.ValueOf(map[string]any{"ok": true})
}

func missing(what string) any {
	return js.ValueOf(map[string]any{"error": "missing " + what})
}

// --- Command Handlers ---

func loadScene(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("scene JSON")
	}
	return result(eng.LoadScene(args[0].String()))
}

func loadSampleScene(this js.Value, args []js.Value) any {
	sceneID := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		sceneID = args[0].String()
	}
	return result(eng.LoadSampleScene(sceneID))
}

func apply(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("operation JSON")
	}
	seq, err := eng.ApplyJSON(args[0].String())
	if err != nil {
		return result(err)
	}
	return js.ValueOf(map[string]any{"ok": true, "seq": seq})
}

func moveNode(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return missing("node id and position")
	}
	return result(eng.MoveNode(args[0].String(), args[1].Float(), args[2].Float()))
}

func resizeNode(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return missing("node id and size")
	}
	return result(eng.ResizeNode(args[0].String(), args[1].Float(), args[2].Float()))
}

func setShape(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return missing("node id and shape")
	}
	return result(eng.SetShape(args[0].String(), args[1].String()))
}

func removeNode(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("node id")
	}
	return result(eng.RemoveNode(args[0].String()))
}

func removeEdge(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("edge id")
	}
	return result(eng.RemoveEdge(args[0].String()))
}

func removeGrouping(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("grouping id")
	}
	return result(eng.RemoveGrouping(args[0].String()))
}

func setViewport(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return missing("pan and zoom")
	}
	return result(eng.SetViewport(args[0].Float(), args[1].Float(), args[2].Float()))
}

func layoutStop(this js.Value, args []js.Value) any {
	return result(eng.LayoutStop())
}

func refresh(this js.Value, args []js.Value) any {
	return result(eng.Refresh())
}

func setSelection(this js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		eng.SetSelection(nil)
		return nil
	}
	arr := args[0]
	ids := make([]string, arr.Length())
	for i := range ids {
		ids[i] = arr.Index(i).String()
	}
	eng.SetSelection(ids)
	return nil
}

func tick(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.Tick())
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.Render())
}

func hitTest(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	return js.ValueOf(eng.HitTest(args[0].Float(), args[1].Float()))
}

func getSelectionBounds(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.GetSelectionBounds())
}

func getDocument(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.GetDocument())
}

func getSelection(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.GetSelection())
}

func getOutline(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("[]")
	}
	return js.ValueOf(eng.GetOutline(args[0].String()))
}

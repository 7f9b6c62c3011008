package editor

import (
	"github.com/godwinm8/Stateless-2D-Editor/canvas"
)

// Command is one toolbar action. Mutating commands are refused in view-only mode.
type Command struct {
	Name    string
	Label   string
	Mutates bool
	Run     func(s *Shell) error
}

var toolbar = []Command{
	{Name: "rectangle", Label: "Rectangle", Mutates: true, Run: add("add-rect", func() *canvas.Object {
		return canvas.NewRect(100, 100, 120, 80, "royalblue")
	})},
	{Name: "circle", Label: "Circle", Mutates: true, Run: add("add-circle", func() *canvas.Object {
		return canvas.NewCircle(180, 160, 50, "seagreen")
	})},
	{Name: "text", Label: "Text", Mutates: true, Run: add("add-text", func() *canvas.Object {
		return canvas.NewText("Hello, World!", 240, 220, 24)
	})},
	{Name: "pen", Label: "Pen", Mutates: true, Run: togglePen},
	{Name: "edit-text", Label: "Edit Text", Mutates: true, Run: editText},
	{Name: "change-color", Label: "Change Color", Mutates: true, Run: mutate("change-color", func(o *canvas.Object) {
		o.Fill = "crimson"
	})},
	{Name: "delete", Label: "Delete", Mutates: true, Run: deleteActive},
	{Name: "undo", Label: "Undo", Mutates: true, Run: func(s *Shell) error {
		_, err := s.history.Undo()
		return err
	}},
	{Name: "redo", Label: "Redo", Mutates: true, Run: func(s *Shell) error {
		_, err := s.history.Redo()
		return err
	}},
	{Name: "export-png", Label: "Export PNG", Run: func(s *Shell) error {
		_, err := s.adapter.ExportRaster()
		return err
	}},
	{Name: "export-svg", Label: "Export SVG", Run: func(s *Shell) error {
		_, err := s.adapter.ExportVector()
		return err
	}},
	{Name: "template-1", Label: "Template 1", Mutates: true, Run: add("load-template", func() *canvas.Object {
		return canvas.NewRect(100, 100, 200, 200, "dodgerblue")
	})},
	{Name: "template-2", Label: "Template 2", Mutates: true, Run: add("load-template", func() *canvas.Object {
		return canvas.NewCircle(320, 200, 90, "tomato")
	})},
	{Name: "lock", Label: "Lock", Mutates: true, Run: mutate("lock-object", func(o *canvas.Object) {
		o.SetLocked(true)
	})},
	{Name: "unlock", Label: "Unlock", Mutates: true, Run: mutate("unlock-object", func(o *canvas.Object) {
		o.SetLocked(false)
	})},
	{Name: "save", Label: "Save", Mutates: true, Run: func(s *Shell) error {
		return s.history.Commit("manual-save")
	}},
}

func lookup(name string) (Command, bool) {
	for _, c := range toolbar {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// Commands returns the toolbar in display order.
func Commands() []Command {
	return append([]Command(nil), toolbar...)
}

func add(label string, build func() *canvas.Object) func(s *Shell) error {
	return func(s *Shell) error {
		if err := s.adapter.AddObject(build()); err != nil {
			return err
		}
		return s.history.Commit(label)
	}
}

// mutate applies fn to the selection; nothing is committed when nothing is selected.
func mutate(label string, fn func(o *canvas.Object)) func(s *Shell) error {
	return func(s *Shell) error {
		ok, err := s.adapter.MutateActive(fn)
		if err != nil || !ok {
			return err
		}
		return s.history.Commit(label)
	}
}

func togglePen(s *Shell) error {
	next := !s.adapter.PenMode()
	if err := s.adapter.SetToolMode(next); err != nil {
		return err
	}
	label := "pen-off"
	if next {
		label = "pen-on"
	}
	return s.history.Commit(label)
}

func deleteActive(s *Shell) error {
	ok, err := s.adapter.RemoveActive()
	if err != nil || !ok {
		return err
	}
	return s.history.Commit("delete")
}

// editText edits the selected text object, falling back to the first text on the canvas. With
// no text at all it adds a "New Text" object instead.
func editText(s *Shell) error {
	isText := func(o *canvas.Object) bool { return o.Type == canvas.KindText }

	active := s.adapter.Active()
	if active == nil || !isText(active) {
		found, err := s.adapter.Select(isText)
		if err != nil {
			return err
		}
		if !found {
			if err := s.adapter.AddObject(canvas.NewText("New Text", 240, 220, 24)); err != nil {
				return err
			}
			return s.history.Commit("add-text (via edit)")
		}
		active = s.adapter.Active()
	}

	if s.opts.Prompter == nil {
		return nil
	}
	next, ok := s.opts.Prompter.Prompt("Edit text:", active.Text)
	if !ok {
		return nil
	}
	return mutate("edit-text", func(o *canvas.Object) { o.Text = next })(s)
}

package util

import "testing"

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hello {{.name}}", map[string]any{"name": "Ava"})
	if err != nil || out != "Hello Ava" {
		t.Fatalf("got %q, %v", out, err)
	}

	// fast path: no markers
	out, err = RenderTemplate("plain text", nil)
	if err != nil || out != "plain text" {
		t.Fatalf("got %q, %v", out, err)
	}
}

func TestRenderTemplate_NoEscaping(t *testing.T) {
	// prompt text must pass through verbatim, including characters an HTML
	// renderer would escape
	out, err := RenderTemplate("{{.q}}", map[string]any{"q": `SELECT * FROM "Track" WHERE Name < 'x' && 1`})
	if err != nil {
		t.Fatal(err)
	}
	if out != `SELECT * FROM "Track" WHERE Name < 'x' && 1` {
		t.Fatalf("template escaped prompt content: %q", out)
	}
}

func TestRenderTemplate_Helpers(t *testing.T) {
	out, err := RenderTemplate(`{{upper .genre}} / {{join ", " .names}}`, map[string]any{
		"genre": "rock",
		"names": []interface{}{"a", "b"},
	})
	if err != nil || out != "ROCK / a, b" {
		t.Fatalf("got %q, %v", out, err)
	}
}

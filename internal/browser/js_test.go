package browser

import (
	"strings"
	"testing"

	"github.com/dgnsrekt/pdown/internal/engine"
)

func TestJSStringEscapes(t *testing.T) {
	got := jsString(`td[data-testid="name"] "x"`)
	want := `"td[data-testid=\"name\"] \"x\""`
	if got != want {
		t.Fatalf("jsString = %s; want %s", got, want)
	}
}

func TestBuildIIFEWrapsErrors(t *testing.T) {
	js := buildIIFE("return 1;")
	if !strings.HasPrefix(js, "(function(){") || !strings.HasSuffix(js, "})()") {
		t.Fatalf("unexpected wrapper: %s", js)
	}
	if !strings.Contains(js, engine.CodeEvalFailure) {
		t.Fatalf("wrapper lacks error code: %s", js)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	var n int
	if err := decodeEnvelope(`{"ok":true,"data":3}`, &n); err != nil || n != 3 {
		t.Fatalf("decodeEnvelope = %d, %v; want 3, nil", n, err)
	}

	err := decodeEnvelope(`{"ok":false,"error_code":"NOT_FOUND","error_message":"gone"}`, &n)
	if !engine.IsCode(err, codeNotFound) {
		t.Fatalf("decodeEnvelope error = %v; want %s", err, codeNotFound)
	}

	if err := decodeEnvelope(`not json`, &n); !engine.IsCode(err, engine.CodeEvalFailure) {
		t.Fatalf("decodeEnvelope error = %v; want %s", err, engine.CodeEvalFailure)
	}
}

func TestFoldersScriptEmbedsSelectors(t *testing.T) {
	js := foldersScript("tbody > tr", "svg use", "#mime-sm-folder", "[data-testid=name-cell] span")
	for _, want := range []string{`"tbody \u003e tr"`, `"#mime-sm-folder"`, "nth-child"} {
		if !strings.Contains(js, want) {
			t.Fatalf("script lacks %s:\n%s", want, js)
		}
	}
}

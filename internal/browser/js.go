package browser

import (
	"encoding/json"

	"github.com/dgnsrekt/pdown/internal/engine"
)

const codeNotFound = "NOT_FOUND"

// evalEnvelope is what every page script returns, JSON encoded.
type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func buildIIFE(body string) string {
	return `(function(){
try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + engine.CodeEvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}

// firstMatch returns a script body that binds el to the first match of sel or
// returns a NOT_FOUND envelope.
func firstMatch(sel string) string {
	return `const el = document.querySelector(` + jsString(sel) + `);
if (!el) return JSON.stringify({ok:false,error_code:"` + codeNotFound + `",error_message:"no element matches " + ` + jsString(sel) + `});
`
}

func countScript(sel string) string {
	return buildIIFE(`return JSON.stringify({ok:true,data:document.querySelectorAll(` + jsString(sel) + `).length});`)
}

func attributeScript(sel, name string) string {
	return buildIIFE(firstMatch(sel) + `return JSON.stringify({ok:true,data:el.getAttribute(` + jsString(name) + `)});`)
}

func textScript(sel string) string {
	return buildIIFE(firstMatch(sel) + `return JSON.stringify({ok:true,data:(el.textContent || "").trim()});`)
}

func progressScript(sel string) string {
	return buildIIFE(firstMatch(sel) + `return JSON.stringify({ok:true,data:{value:Number(el.value) || 0,max:Number(el.max) || 0}});`)
}

// foldersScript finds rows whose cell carries the folder icon and returns the
// folder name with a selector addressing that cell.
func foldersScript(rowsSel, iconSel, iconRef, nameSel string) string {
	return buildIIFE(`const rows = Array.from(document.querySelectorAll(` + jsString(rowsSel) + `));
const out = [];
rows.forEach((row, r) => {
  const cells = Array.from(row.querySelectorAll('td'));
  for (let i = 0; i < cells.length; i++) {
    const use = cells[i].querySelector(` + jsString(iconSel) + `);
    const ref = use && (use.getAttribute('xlink:href') || use.getAttribute('href'));
    if (ref === ` + jsString(iconRef) + `) {
      const nameEl = cells[i].querySelector(` + jsString(nameSel) + `);
      out.push({
        name: (nameEl && nameEl.getAttribute('aria-label')) || '',
        selector: ` + jsString(rowsSel) + ` + ':nth-child(' + (r + 1) + ') > td:nth-child(' + (i + 1) + ')'
      });
      break;
    }
  }
});
return JSON.stringify({ok:true,data:out});`)
}

// itemsScript returns the descriptive text and size text of every listing
// row, falling back to the alt attribute for rows with thumbnails.
func itemsScript(rowsSel, infoSel, fallbackSel, sizeSel string) string {
	return buildIIFE(`const rows = Array.from(document.querySelectorAll(` + jsString(rowsSel) + `));
const out = rows.map((row) => {
  const size = row.querySelector(` + jsString(sizeSel) + `);
  const info = row.querySelector(` + jsString(infoSel) + `);
  const fallback = row.querySelector(` + jsString(fallbackSel) + `);
  const infoText = (info && (info.textContent || '').trim()) ||
    (fallback && (fallback.getAttribute('alt') || '').trim()) || '';
  return {info: infoText, size: (size && (size.textContent || '').trim()) || ''};
});
return JSON.stringify({ok:true,data:out});`)
}

// decodeEnvelope unpacks a script result into out.
func decodeEnvelope(raw string, out any) error {
	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return engine.NewError(engine.CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = engine.CodeEvalFailure
		}
		return engine.NewError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return engine.NewError(engine.CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

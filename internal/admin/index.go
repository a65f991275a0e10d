package admin

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/athena-engine/athena/internal/version"
)

const liveReloadScript = `<script>
(function () {
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onmessage = function (ev) {
    var msg = JSON.parse(ev.data);
    var li = document.createElement("li");
    li.textContent = msg.timestamp + " " + msg.type + " " + msg.path;
    document.getElementById("events").prepend(li);
  };
})();
</script>`

func indexPage(build version.BuildInfo, pages []PageInfo, live bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>Athena</title></head><body>"); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "<h1>Athena %s</h1>", templ.EscapeString(build.Short())); err != nil {
			return err
		}
		if err := pageTable(pages).Render(ctx, w); err != nil {
			return err
		}
		if live {
			if _, err := io.WriteString(w, "<h2>Changes</h2><ul id=\"events\"></ul>"+liveReloadScript); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

func pageTable(pages []PageInfo) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if len(pages) == 0 {
			_, err := io.WriteString(w, "<p>No pages registered.</p>")
			return err
		}
		if _, err := io.WriteString(w, "<table><thead><tr><th>Path</th><th>File</th><th>Title</th><th>Accessible</th></tr></thead><tbody>"); err != nil {
			return err
		}
		for _, p := range pages {
			access := "no"
			if p.Accessible {
				access = "yes"
			}
			if _, err := fmt.Fprintf(w, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
				templ.EscapeString(p.Path),
				templ.EscapeString(p.File),
				templ.EscapeString(p.Title),
				access); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</tbody></table>")
		return err
	})
}

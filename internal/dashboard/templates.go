package dashboard

import (
	"html/template"
	"io"

	"github.com/ziadkadry99/topoview/internal/card"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Entry}} - topoview</title>
<style>
body { font-family: sans-serif; margin: 1.5rem; }
.topology-card { position: relative; overflow: hidden; border: 1px solid #ccc; height: 480px; }
.zoom-controls { position: absolute; top: 8px; right: 8px; z-index: 1; }
.card-message { color: #b00; }
.panel { margin-top: 1rem; }
</style>
</head>
<body>
<h1>{{.Entry}}</h1>
{{.Markup}}
<div class="panel">
{{- with .Snapshot.Detail}}
<h2>{{.Node}}</h2>
{{- if .Found}}
<p>{{.Type}}{{with .EntityID}} &middot; {{.}}{{end}}{{with .Status}} &middot; {{.State}}{{end}}</p>
{{- with .Neighbors}}<p>Neighbors: {{range $i, $n := .}}{{if $i}}, {{end}}{{$n}}{{end}}</p>{{end}}
{{- else}}
<p>No data for this node.</p>
{{- end}}
{{- else}}
<p>Select a node or edge.</p>
{{- end}}
</div>
</body>
</html>
`))

type pageData struct {
	Entry    string
	Markup   template.HTML
	Snapshot card.Snapshot
}

// renderPage writes the card page. The card markup has already been
// sanitized and is emitted as is.
func renderPage(w io.Writer, entry string, snap card.Snapshot) error {
	return pageTemplate.Execute(w, pageData{
		Entry:    entry,
		Markup:   template.HTML(snap.Markup),
		Snapshot: snap,
	})
}

// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stability

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/safehtml/template"
)

var htmlTemplate = template.Must(template.New("report").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Benchmark stability</title>
<style>
.stability { border-collapse: collapse; }
.stability th { text-align: left; border-bottom: 1px solid #666; }
.stability td { padding: 0em 1em; }
.stability td.num { text-align: right; }
.stability tr.unstable td { color: #c00; }
</style>
</head>
<body>
<p>{{.Runs}} runs, {{.Tests}} tests, threshold {{.Threshold}}</p>
<table class='stability'>
<tr><th>name<th>norm<th>max delta (single)<th>spread (cross)
{{range .Rows -}}
<tr{{if not .Stable}} class='unstable'{{end}}><td>{{.Name}}<td class='num'>{{.Norm}}<td class='num'>{{.Single}}<td class='num'>{{.Cross}}
{{end -}}
</table>
</body>
</html>
`))

type htmlRow struct {
	Name                string
	Norm, Single, Cross string
	Stable              bool
}

// WriteHTML writes an HTML report of r and norms to out. runs is the
// number of result sets the report was computed from.
func WriteHTML(out io.Writer, r *Report, norms map[string]NormEntry, runs int) error {
	data := struct {
		Runs, Tests int
		Threshold   string
		Rows        []htmlRow
	}{
		Runs:      runs,
		Tests:     len(norms),
		Threshold: fmt.Sprintf("%.2f%%", 100*r.Threshold),
	}
	names := make([]string, 0, len(norms))
	for name := range norms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		row := htmlRow{
			Name:   name,
			Norm:   fmt.Sprintf("%.6g", norms[name].Norm),
			Stable: norms[name].Stable,
		}
		if d, ok := r.WithinRun[name]; ok {
			row.Single = fmt.Sprintf("%.2f%%", 100*d)
		}
		if d, ok := r.AcrossRun[name]; ok {
			row.Cross = fmt.Sprintf("%.2f%%", 100*d)
		}
		data.Rows = append(data.Rows, row)
	}
	return htmlTemplate.Execute(out, data)
}

package report

import (
	"html/template"
	"io"
	"time"

	"stowplan/internal/allocation"
)

var pageTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"f1": func(v float64) string { return fmtFloat(v, 1) },
	"f2": func(v float64) string { return fmtFloat(v, 2) },
}).Parse(pageHTML))

type pageData struct {
	Meta
	Generated string
	Result    allocation.Result
}

// HTML writes a self-contained report page.
func HTML(w io.Writer, meta Meta, res allocation.Result) error {
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}
	return pageTmpl.Execute(w, pageData{
		Meta:      meta,
		Generated: meta.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		Result:    res,
	})
}

const pageHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; margin-bottom: 1.5rem; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
th { background: #f2f2f2; }
.fit { color: #1a7f37; } .nofit { color: #cf222e; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Warehouse: <strong>{{.WarehouseName}}</strong> &middot; Inventory: <strong>{{.UploadName}}</strong> &middot; BSF {{f2 .BSF}} &middot; Generated {{.Generated}}</p>
{{with .Result.Summary}}
<h2>Summary</h2>
<table>
<tr><th>Item records</th><td>{{.TotalItems}}</td><th>Allocated</th><td>{{.TotalAllocated}}</td><th>Failed</th><td>{{.TotalFailed}}</td></tr>
<tr><th>Units</th><td>{{.TotalUnits}}</td><th>Allocated units</th><td>{{.AllocatedUnits}}</td><th>Allocation rate</th><td>{{f1 .AllocationRate}}%</td></tr>
<tr><th>Warehouse area</th><td>{{f1 .TotalWarehouseArea}} sq ft</td><th>Used area</th><td>{{f1 .TotalUsedArea}} sq ft</td><th>Utilization</th><td>{{f1 .OverallUtilization}}%</td></tr>
</table>
{{end}}
<p class="{{if .Result.OverallFit}}fit{{else}}nofit{{end}}">{{if .Result.OverallFit}}All items fit.{{else}}Not all items fit.{{end}}</p>
<h2>Zones</h2>
{{range .Result.Zones}}
<h3>{{.Zone.Name}} ({{f1 .AreaUtilization}}% used, {{f1 .RemainingArea}} sq ft free)</h3>
{{if .Items}}
<table>
<tr><th>Item</th><th>Category</th><th>Qty</th><th>Height (ft)</th><th>Area (sq ft)</th><th>Required (sq ft)</th><th>Weight (lbs)</th><th>PSF</th></tr>
{{range .Items}}<tr><td>{{.Name}}</td><td>{{.Category}}</td><td>{{.Quantity}}</td><td>{{f1 .Height}}</td><td>{{f1 .Area}}</td><td>{{f1 .TotalArea}}</td><td>{{f1 .Weight}}</td><td>{{f1 .PSF}}</td></tr>
{{end}}</table>
{{else}}<p>No items.</p>{{end}}
{{end}}
{{if .Result.Failures}}
<h2>Failed allocations</h2>
<table>
<tr><th>Item</th><th>Category</th><th>Qty</th><th>Height (ft)</th><th>Area (sq ft)</th><th>PSF</th><th>Reason</th><th>Detail</th></tr>
{{range .Result.Failures}}<tr><td>{{.Name}}</td><td>{{.Category}}</td><td>{{.Quantity}}</td><td>{{f1 .Height}}</td><td>{{f1 .Area}}</td><td>{{f1 .PSF}}</td><td>{{.Reason}}</td><td>{{.Detail}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`

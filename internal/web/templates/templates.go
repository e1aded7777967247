// Package templates renders the HTML preview pages.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/tablefix/internal/table"
)

// PageData is what the index page shows.
type PageData struct {
	SessionID  string
	Filename   string
	Revision   int
	RowCount   int
	Preview    *table.Table
	Extensions []string
}

// Page renders the full index page: an upload form, a transform form and,
// when the session holds a table, its preview.
func Page(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>tablefix</title>`+
			`<meta name="viewport" content="width=device-width, initial-scale=1"></head><body><main>`+
			`<h1>tablefix</h1>`); err != nil {
			return err
		}

		if err := uploadForm(data).Render(ctx, w); err != nil {
			return err
		}
		if data.Preview != nil {
			if err := transformForm(data).Render(ctx, w); err != nil {
				return err
			}
			summary := fmt.Sprintf(`<p class="summary">%s &middot; revision %d &middot; %d rows</p>`,
				templ.EscapeString(data.Filename), data.Revision, data.RowCount)
			if _, err := io.WriteString(w, summary); err != nil {
				return err
			}
			if err := TablePreview(*data.Preview).Render(ctx, w); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

func uploadForm(data PageData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		accept := ""
		for i, ext := range data.Extensions {
			if i > 0 {
				accept += ","
			}
			accept += ext
		}
		_, err := fmt.Fprintf(w, `<form method="post" action="/api/upload" enctype="multipart/form-data">`+
			`<input type="hidden" name="session_id" value="%s">`+
			`<input type="file" name="file" accept="%s" required>`+
			`<button type="submit">Upload</button></form>`,
			templ.EscapeString(data.SessionID), templ.EscapeString(accept))
		return err
	})
}

func transformForm(data PageData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<form method="post" action="/api/transform" data-session="%s">`+
			`<input type="text" name="natural_language" placeholder="e.g. mask email addresses" required>`+
			`<input type="text" name="columns" placeholder="columns (comma separated, optional)">`+
			`<label><input type="checkbox" name="apply_phone_normalization"> AU phones</label>`+
			`<label><input type="checkbox" name="apply_date_normalization"> ISO dates</label>`+
			`<button type="submit">Transform</button></form>`,
			templ.EscapeString(data.SessionID))
		return err
	})
}

// TablePreview renders t as an HTML table. Every cell is escaped.
func TablePreview(t table.Table) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<table class="preview"><thead><tr><th>#</th>`); err != nil {
			return err
		}
		for _, c := range t.Columns {
			if _, err := io.WriteString(w, "<th>"+templ.EscapeString(c)+"</th>"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</tr></thead><tbody>`); err != nil {
			return err
		}
		for i, row := range t.Rows {
			if _, err := io.WriteString(w, "<tr><td>"+strconv.Itoa(i+1)+"</td>"); err != nil {
				return err
			}
			for _, cell := range row {
				if _, err := io.WriteString(w, "<td>"+templ.EscapeString(cell)+"</td>"); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "</tr>"); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}

// ErrorAlert renders a user-facing error fragment.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert alert-error" role="alert"><strong>%s</strong>`+
			`<p>%s</p><small>Code: %s</small></div>`,
			templ.EscapeString(message), templ.EscapeString(action), templ.EscapeString(code))
		return err
	})
}

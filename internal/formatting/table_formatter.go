package formatting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"berth/internal/api"
)

// CatalogTable renders services as a rounded table and groups as a tree.
type CatalogTable struct {
	options Options
}

// FormatCatalog writes one row per service.
func (f *CatalogTable) FormatCatalog(w io.Writer, services []api.ServiceInfo) error {
	if len(services) == 0 {
		_, err := fmt.Fprintln(w, f.paint(text.FgYellow, "No services found"))
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	header := table.Row{f.header("NAME"), f.header("GROUP"), f.header("SID")}
	if f.options.ShowStatus {
		header = append(header, f.header("STATUS"))
	}
	t.AppendHeader(header)

	for _, svc := range services {
		group := svc.Group
		if group == "" {
			group = "-"
		}
		row := table.Row{svc.Name, group, svc.SID}
		if f.options.ShowStatus {
			row = append(row, f.status(svc.Status))
		}
		t.AppendRow(row)
	}

	t.AppendFooter(table.Row{fmt.Sprintf("%d services", len(services))})
	t.Render()
	return nil
}

// FormatTree writes the group tree with services under their groups.
func (f *CatalogTable) FormatTree(w io.Writer, root *api.ServiceGroup) error {
	l := list.NewWriter()
	l.SetStyle(list.StyleConnectedRounded)

	l.AppendItem(f.paint(text.FgHiCyan, root.Name))
	l.Indent()
	f.appendGroup(l, root)

	_, err := fmt.Fprintln(w, l.Render())
	return err
}

func (f *CatalogTable) appendGroup(l list.Writer, g *api.ServiceGroup) {
	for _, child := range g.Children {
		switch {
		case child.Service != nil:
			l.AppendItem(child.Service.Name)
		case child.Group != nil:
			l.AppendItem(f.paint(text.FgHiCyan, child.Group.Name))
			l.Indent()
			f.appendGroup(l, child.Group)
			l.UnIndent()
		}
	}
}

func (f *CatalogTable) header(s string) string {
	return f.paint(text.FgHiCyan, s)
}

func (f *CatalogTable) status(s api.ServiceStatus) string {
	switch s {
	case api.StatusRunning:
		return f.paint(text.FgGreen, string(s))
	case api.StatusStarting, api.StatusStopping:
		return f.paint(text.FgYellow, string(s))
	default:
		return f.paint(text.FgHiBlack, string(s))
	}
}

func (f *CatalogTable) paint(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"kitedb/graphdb"
)

// renderValues prints query results, as a table when every item is a
// vertex or every item is a vertex property
func renderValues(out io.Writer, values []graphdb.Value) {
	switch commonKind(values) {
	case graphdb.KindVertex:
		vertices := make([]graphdb.Vertex, 0, len(values))
		for _, v := range values {
			vertex, _ := v.AsVertex()
			vertices = append(vertices, vertex)
		}
		renderVertices(out, vertices)
	case graphdb.KindVertexProperty:
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"key", "value"})
		for _, v := range values {
			vp, _ := v.AsVertexProperty()
			table.Append([]string{vp.Key, vp.Value.String()})
		}
		table.Render()
	default:
		for _, v := range values {
			fmt.Fprintln(out, v.String())
		}
	}
}

func renderVertices(out io.Writer, vertices []graphdb.Vertex) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"id", "label", "properties"})
	table.SetAutoWrapText(false)
	for _, v := range vertices {
		table.Append([]string{v.ID, v.Label, formatProperties(v)})
	}
	table.Render()
}

func renderLabels(out io.Writer, labels map[string]int64) {
	if len(labels) == 0 {
		return
	}
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"label", "vertices"})
	for _, name := range names {
		table.Append([]string{name, strconv.FormatInt(labels[name], 10)})
	}
	table.Render()
}

func formatProperties(v graphdb.Vertex) string {
	parts := make([]string, 0, len(v.Properties))
	for _, key := range v.PropertyKeys() {
		parts = append(parts, key+"="+graphdb.ListValue(v.Properties[key]...).String())
	}
	return strings.Join(parts, " ")
}

func commonKind(values []graphdb.Value) graphdb.Kind {
	if len(values) == 0 {
		return graphdb.KindNull
	}
	kind := values[0].Kind()
	for _, v := range values[1:] {
		if v.Kind() != kind {
			return graphdb.KindNull
		}
	}
	return kind
}

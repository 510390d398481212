// file: cmd/dataagents/output.go

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"DataAgents/internal/core/port"
	"DataAgents/internal/service"

	"gopkg.in/yaml.v3"
)

const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

// printer 按 --output 指定的格式把结果写到 stdout
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) (*printer, error) {
	switch f := strings.ToLower(format); f {
	case formatJSON, formatYAML, formatTable:
		return &printer{format: f, w: w}, nil
	default:
		return nil, fmt.Errorf("不支持的输出格式 '%s' (可选: json, yaml, table)", format)
	}
}

// Print 输出任意值。table 格式只对已知的结果类型生效，其余类型回落到 JSON。
func (p *printer) Print(v any) error {
	switch p.format {
	case formatYAML:
		return p.printYAML(v)
	case formatTable:
		if ok, err := p.printTable(v); ok {
			return err
		}
	}
	return p.printJSON(v)
}

func (p *printer) printJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("JSON 序列化失败: %w", err)
	}
	return nil
}

// printYAML 先经过 JSON 往返，使字段名与 json 标签保持一致
func (p *printer) printYAML(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("YAML 序列化失败: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("YAML 序列化失败: %w", err)
	}
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("YAML 序列化失败: %w", err)
	}
	return enc.Close()
}

func (p *printer) printTable(v any) (bool, error) {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	switch x := v.(type) {
	case *port.ResultSet:
		writeResultSet(tw, x)
	case map[string]outcomeView:
		for _, name := range sortedKeys(x) {
			o := x[name]
			fmt.Fprintf(tw, "== %s ==\n", name)
			if o.Error != "" {
				fmt.Fprintf(tw, "ERROR\t%s\n", o.Error)
				continue
			}
			writeResultSet(tw, o.Result)
		}
	case *port.Discovery:
		writeDiscovery(tw, x)
	case *port.SchemaResult:
		writeSchema(tw, x)
	case []adapterRow:
		fmt.Fprintln(tw, "NAME\tTYPE")
		for _, a := range x {
			fmt.Fprintf(tw, "%s\t%s\n", a.Name, a.Type)
		}
	default:
		return false, nil
	}
	return true, tw.Flush()
}

func writeResultSet(w io.Writer, rs *port.ResultSet) {
	if rs == nil {
		return
	}
	names := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		names[i] = c.Name
	}
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t")))
	for _, row := range rs.Rows {
		cells := make([]string, len(names))
		for i, n := range names {
			cells[i] = formatCell(row[n])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	fmt.Fprintf(w, "(%d 行)\n", len(rs.Rows))
}

func writeDiscovery(w io.Writer, d *port.Discovery) {
	fmt.Fprintf(w, "ADAPTER\t%s\n", d.Adapter)
	fmt.Fprintf(w, "TYPE\t%s\n", d.Type)
	if d.Location != "" {
		fmt.Fprintf(w, "LOCATION\t%s\n", d.Location)
	}
	if d.Description != "" {
		fmt.Fprintf(w, "DESCRIPTION\t%s\n", d.Description)
	}
	for _, c := range sortedKeys(d.Capabilities) {
		fmt.Fprintf(w, "CAPABILITY\t%s=%t\n", c, d.Capabilities[c])
	}
	if len(d.Parameters) > 0 {
		fmt.Fprintln(w, "\nPARAMETER\tTYPE\tUNITS\tREQUIRED\tDESCRIPTION")
		for _, name := range sortedKeys(d.Parameters) {
			p := d.Parameters[name]
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", name, p.Type, p.Units, p.Required, p.Description)
		}
	}
}

func writeSchema(w io.Writer, s *port.SchemaResult) {
	fmt.Fprintln(w, "TABLE\tFIELD\tTYPE\tSEARCHABLE\tRETURNABLE")
	for _, table := range sortedKeys(s.Tables) {
		for _, f := range s.Tables[table] {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\n", table, f.Name, f.DataType, f.IsSearchable, f.IsReturnable)
		}
	}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// outcomeView 是扇出查询中单个适配器结果的可序列化形式
type outcomeView struct {
	Result *port.ResultSet `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func outcomeViews(outcomes map[string]service.Outcome) map[string]outcomeView {
	out := make(map[string]outcomeView, len(outcomes))
	for name, o := range outcomes {
		if o.Err != nil {
			out[name] = outcomeView{Error: o.Err.Error()}
			continue
		}
		out[name] = outcomeView{Result: o.Result}
	}
	return out
}

type adapterRow struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

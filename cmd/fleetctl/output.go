package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/fleetconsole/internal/association"
	"github.com/dropDatabas3/fleetconsole/internal/fleet"
	"github.com/dropDatabas3/fleetconsole/internal/transport"
)

// print escribe v como JSON indentado o, en modo text, con el formateador
// de cada tipo.
func (a *app) print(cmd *cobra.Command, v any) error {
	w := cmd.OutOrStdout()
	if a.out == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	switch t := v.(type) {
	case []fleet.AgentGroup:
		tw := table(w, "NAME", "VALUE")
		for _, g := range t {
			fmt.Fprintf(tw, "%s\t%s\n", g.Name, g.Value)
		}
		return tw.Flush()
	case *fleet.AgentGroup:
		fmt.Fprintf(w, "name:  %s\nvalue: %s\n", t.Name, t.Value)
	case []fleet.ConfigDetail:
		tw := table(w, "NAME", "VERSION")
		for _, c := range t {
			fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.Version)
		}
		return tw.Flush()
	case *fleet.ConfigDetail:
		fmt.Fprintf(w, "name:    %s\nversion: %d\n---\n%s\n", t.Name, t.Version, strings.TrimRight(t.Detail, "\n"))
	case []fleet.Agent:
		tw := table(w, "INSTANCE", "TYPE", "VERSION", "IP", "HOSTNAME", "STATUS")
		for _, ag := range t {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", ag.InstanceID, ag.AgentType, ag.Version, ag.IP, ag.Hostname, ag.RunningStatus)
		}
		return tw.Flush()
	case []string:
		for _, s := range t {
			fmt.Fprintln(w, s)
		}
	case fleet.Batch:
		for _, o := range t.Outcomes {
			if o.Err != nil {
				fmt.Fprintf(w, "%s\tFAILED\t%v\n", o.Key, o.Err)
			} else {
				fmt.Fprintf(w, "%s\tok\n", o.Key)
			}
		}
	case []association.Candidate:
		tw := table(w, "NAME", "APPLIED")
		for _, c := range t {
			fmt.Fprintf(tw, "%s\t%t\n", c.Name, c.Applied)
		}
		return tw.Flush()
	case association.StagedEditSet:
		for _, tab := range t.OpenTabs {
			mark := " "
			if tab.Member == t.ActiveKey {
				mark = "*"
			}
			fmt.Fprintf(w, "%s %s\n", mark, tab.Member)
		}
		for _, k := range t.PendingRemovals {
			fmt.Fprintf(w, "- %s (pending)\n", k)
		}
	case transport.Record:
		printRecord(w, map[string]any(t), "")
	case string:
		fmt.Fprintln(w, t)
	default:
		fmt.Fprintf(w, "%v\n", t)
	}
	return nil
}

func table(w io.Writer, cols ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	return tw
}

// printRecord imprime un árbol como líneas path=valor en orden estable.
func printRecord(w io.Writer, m map[string]any, prefix string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		printValue(w, m[k], join(prefix, k))
	}
}

func printValue(w io.Writer, v any, path string) {
	switch t := v.(type) {
	case map[string]any:
		printRecord(w, t, path)
	case []any:
		if len(t) == 0 {
			fmt.Fprintf(w, "%s=[]\n", path)
		}
		for i, it := range t {
			printValue(w, it, fmt.Sprintf("%s[%d]", path, i))
		}
	default:
		fmt.Fprintf(w, "%s=%v\n", path, t)
	}
}

func join(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "." + k
}

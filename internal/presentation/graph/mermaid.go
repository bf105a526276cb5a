package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/topograph/pkg/domain"
)

// Overlay marks nodes and edges to emphasize on the rendered graph.
type Overlay struct {
	Problems []string // node or edge ids with validation problems
	Focus    string   // node id
}

// GenerateMermaid produces a Mermaid flowchart of a channel, left to right
// along the signal chain. Shapes follow the node kind:
// - Satellite: ((Circle))
// - IRD: [[Subroutine]]
// - Router: {{Hexagon}}
// - Switch: {Rhombus}
// - Custom: [/Parallelogram/]
// - Default: [Rectangle]
// Edges are solid for ida, dotted for vuelta and double-headed for bi.
func GenerateMermaid(ch domain.Channel, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, node := range ch.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch domain.Classify(node) {
		case domain.KindSatellite:
			opener, closer = "((", "))"
		case domain.KindIrd:
			opener, closer = "[[", "]]"
		case domain.KindRouter:
			opener, closer = "{{", "}}"
		case domain.KindSwitch:
			opener, closer = "{", "}"
		case domain.KindCustom:
			opener, closer = "[/", "/]"
		}

		label := escape(node.Data.Label)
		if label == "" {
			label = escape(node.ID)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)
	}

	linkIndex := make(map[string]int, len(ch.Edges))
	for i, e := range ch.Edges {
		linkIndex[e.ID] = i
		from, to := sanitizeMermaidID(e.Source), sanitizeMermaidID(e.Target)
		text := escape(e.Label)

		var arrow string
		switch e.Direction {
		case domain.DirectionVuelta:
			arrow = "-.->"
			if text != "" {
				arrow = fmt.Sprintf("-. \"%s\" .->", text)
			}
		case domain.DirectionBi:
			arrow = "<-->"
			if text != "" {
				arrow = fmt.Sprintf("<-- \"%s\" -->", text)
			}
		default:
			arrow = "-->"
			if text != "" {
				arrow = fmt.Sprintf("-- \"%s\" -->", text)
			}
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", from, arrow, to)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef problem fill:#ffebee,stroke:#c62828,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef focus fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		nodes := ch.NodeIndex()
		seen := make(map[string]bool)
		for _, id := range overlay.Problems {
			if seen[id] {
				continue
			}
			seen[id] = true
			if _, ok := nodes[id]; ok {
				fmt.Fprintf(&sb, "    class %s problem;\n", sanitizeMermaidID(id))
			} else if i, ok := linkIndex[id]; ok {
				fmt.Fprintf(&sb, "    linkStyle %d stroke:#c62828,stroke-width:3px;\n", i)
			}
		}
		if overlay.Focus != "" {
			fmt.Fprintf(&sb, "    class %s focus;\n", sanitizeMermaidID(overlay.Focus))
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
